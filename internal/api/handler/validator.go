package handler

import (
	"sync"

	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"

	"github.com/dfberenson/ob-resident-scheduler/internal/model"
)

const shiftTypeTag = "shift_type"

var registerOnce sync.Once

// RegisterValidators 向 gin 默认校验器注册自定义标签
func RegisterValidators() {
	registerOnce.Do(func() {
		v, ok := binding.Validator.Engine().(*validator.Validate)
		if !ok {
			return
		}
		_ = v.RegisterValidation(shiftTypeTag, func(fl validator.FieldLevel) bool {
			return model.ShiftType(fl.Field().String()).Valid()
		})
	})
}
