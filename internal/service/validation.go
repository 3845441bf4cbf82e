package service

import (
	"errors"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/mmo7amed2010/swenam-sis-sub001/internal/util"
)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	// 错误字段使用 json 名称，便于前端定位
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" || name == "" {
			return fld.Name
		}
		return name
	})
	return v
}

func validateStruct(req interface{}) error {
	err := validate.Struct(req)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err
	}
	fields := make([]util.FieldError, 0, len(verrs))
	for _, fe := range verrs {
		fields = append(fields, util.FieldError{Field: fe.Field(), Error: describeTag(fe)})
	}
	return util.NewValidationError(fields...)
}

func describeTag(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "min":
		return "must be at least " + fe.Param()
	case "max":
		return "must be at most " + fe.Param()
	case "oneof":
		return "must be one of: " + fe.Param()
	case "url":
		return "must be a valid URL"
	}
	return "failed on " + fe.Tag()
}

func fieldError(field, msg string) error {
	return util.NewValidationError(util.FieldError{Field: field, Error: msg})
}
