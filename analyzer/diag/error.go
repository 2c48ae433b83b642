package diag

import (
	"cmp"
	"fmt"
	"log/slog"
	"slices"
)

type Errors struct {
	errs []Diagnostic
}

func (r *Errors) With(err ...Diagnostic) *Errors {
	if r == nil {
		return &Errors{errs: err}
	}
	r.errs = append(r.errs, err...)
	return r
}

func (r *Errors) Merge(err *Errors) *Errors {
	if r == nil {
		return err
	}
	if err == nil {
		return r
	}
	if len(err.errs) == 0 {
		return r
	}
	return r.With(err.errs...)
}

func (r *Errors) Errors() []Diagnostic {
	if r == nil {
		return nil
	}
	return r.errs
}

func (r *Errors) HasError() bool {
	if r == nil {
		return false
	}
	return slices.ContainsFunc(r.errs, func(d Diagnostic) bool {
		return d.Severity() == SeverityError
	})
}

func (r *Errors) Len() int {
	if r == nil {
		return 0
	}
	return len(r.errs)
}

// Sorted returns the diagnostics ordered by position, then by message
func (r *Errors) Sorted() []Diagnostic {
	sorted := slices.Clone(r.Errors())
	slices.SortStableFunc(sorted, func(a, b Diagnostic) int {
		if a.Pos() != b.Pos() {
			if a.Pos().Before(b.Pos()) {
				return -1
			}
			return 1
		}
		return cmp.Compare(a.Error(), b.Error())
	})
	return sorted
}

func (r *Errors) LogValue() slog.Value {
	var vals []slog.Attr
	for i, v := range r.Errors() {
		vals = append(vals, slog.Attr{
			Key: fmt.Sprint("e", i),
			Value: slog.GroupValue(
				slog.Attr{
					Key:   "msg",
					Value: slog.StringValue(FormatWithCode(v)),
				},
				slog.Attr{
					Key:   "at",
					Value: slog.StringValue(v.Pos().String()),
				},
			),
		})
	}
	return slog.GroupValue(vals...)
}
