package folder

import (
	"errors"
	"fmt"
	"strings"

	validation "github.com/go-ozzo/ozzo-validation/v4"
)

const maxNameLength = 255

func validateName(name string) error {
	err := validation.Validate(name,
		validation.Required,
		validation.RuneLength(1, maxNameLength),
		validation.By(func(value interface{}) error {
			s, _ := value.(string)
			if strings.EqualFold(s, RootName) {
				return errors.New("is reserved")
			}
			if strings.ContainsAny(s, `/\`) {
				return errors.New("must not contain path separators")
			}
			if s == "." || s == ".." {
				return errors.New("must not be a relative path element")
			}
			return nil
		}),
	)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidName, err)
	}
	return nil
}
