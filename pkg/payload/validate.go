package payload

import (
	stderrors "errors"
	"fmt"
	"sync"

	"github.com/go-playground/validator/v10"

	"github.com/agentstation/orgsync/pkg/errors"
)

var (
	validateOnce sync.Once
	validate     *validator.Validate
)

func validatorInstance() *validator.Validate {
	validateOnce.Do(func() {
		validate = validator.New(validator.WithRequiredStructEnabled())
	})
	return validate
}

// Validate checks struct constraints on a record. The first violation is
// reported as an EntityValidationError.
func Validate(r Record) error {
	err := validatorInstance().Struct(r)
	if err == nil {
		return nil
	}

	var fieldErrs validator.ValidationErrors
	if stderrors.As(err, &fieldErrs) && len(fieldErrs) > 0 {
		fe := fieldErrs[0]
		return errors.NewEntityValidationError(string(r.Kind()), r.Identity(), fe.Namespace(),
			fmt.Sprintf("failed %q constraint", fe.Tag()))
	}
	return &errors.EntityValidationError{Kind: string(r.Kind()), ID: r.Identity(), Message: "invalid record", Err: err}
}
