package sandbox

import (
	"fmt"
	"reflect"
	"regexp"
	"sync"

	"github.com/go-playground/validator/v10"
)

const validateTagName = "validate"

// ISO 8601 时长，如 PT2H0M、P1DT30M
var iso8601DurationPattern = regexp.MustCompile(`^P(?:\d+Y)?(?:\d+M)?(?:\d+W)?(?:\d+D)?(?:T(?:\d+H)?(?:\d+M)?(?:\d+(?:\.\d+)?S)?)?$`)

var defaultValidator = &paramsValidator{}

type paramsValidator struct {
	once     sync.Once
	validate *validator.Validate
}

// Validate 参数验证，失败时返回的错误可以用 errors.Is 匹配 ErrInvalidParams
func (v *paramsValidator) Validate(obj interface{}) error {
	if obj == nil {
		return nil
	}
	value := reflect.ValueOf(obj)
	switch value.Kind() {
	case reflect.Ptr:
		if value.IsNil() {
			return nil
		}
		return v.Validate(value.Elem().Interface())
	case reflect.Struct:
		v.lazyInit()
		if err := v.validate.Struct(obj); err != nil {
			return fmt.Errorf("%w: %s", ErrInvalidParams, err.Error())
		}
	}
	return nil
}

func (v *paramsValidator) lazyInit() {
	v.once.Do(func() {
		v.validate = validator.New()
		v.validate.SetTagName(validateTagName)
		_ = v.validate.RegisterValidation("iso8601duration", func(fl validator.FieldLevel) bool {
			return IsValidDuration(fl.Field().String())
		})
	})
}

// IsValidDuration 判断字符串是否为服务端接受的 ISO 8601 时长
func IsValidDuration(d string) bool {
	return d != "P" && d != "PT" && iso8601DurationPattern.MatchString(d)
}
