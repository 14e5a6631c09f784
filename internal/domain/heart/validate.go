package heart

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
)

// ErrInvalidRecord marks a record that fails validation.
var ErrInvalidRecord = errors.New("invalid heart record")

var validate = func() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name, _, _ := strings.Cut(fld.Tag.Get("json"), ",")
		if name == "" || name == "-" {
			return fld.Name
		}
		return name
	})
	v.RegisterStructValidation(uniqueChoosers, RoundScore{})
	return v
}()

func uniqueChoosers(sl validator.StructLevel) {
	rs := sl.Current().Interface().(RoundScore)
	seen := make(map[string]struct{}, len(rs.Scores))
	for _, e := range rs.Scores {
		if _, dup := seen[e.Username]; dup {
			sl.ReportError(rs.Scores, "scores", "Scores", "unique_chooser", e.Username)
			return
		}
		seen[e.Username] = struct{}{}
	}
}

// Validate checks field bounds, tag values and that no chooser appears
// twice in a round or a round twice in a record.
func (r Record) Validate() error {
	if err := validate.Struct(r); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			e := verrs[0]
			return fmt.Errorf("%w: %s: failed %s", ErrInvalidRecord, e.Namespace(), e.Tag())
		}
		return fmt.Errorf("%w: %w", ErrInvalidRecord, err)
	}
	rounds := make(map[int]struct{}, len(r.Rounds))
	for _, rs := range r.Rounds {
		if _, dup := rounds[rs.Round]; dup {
			return fmt.Errorf("%w: round %d listed twice", ErrInvalidRecord, rs.Round)
		}
		rounds[rs.Round] = struct{}{}
	}
	return nil
}

// ValidateBatch validates every record and enforces one record per
// (name, username) among records not tagged for deletion.
func ValidateBatch(records []Record) error {
	type pair struct{ name, username string }
	live := make(map[pair]struct{}, len(records))
	for i, r := range records {
		if err := r.Validate(); err != nil {
			return fmt.Errorf("record %d: %w", i, err)
		}
		if r.Deleted() {
			continue
		}
		k := pair{r.Name, r.Username}
		if _, dup := live[k]; dup {
			return fmt.Errorf("%w: duplicate %q for %q", ErrInvalidRecord, r.Name, r.Username)
		}
		live[k] = struct{}{}
	}
	return nil
}
