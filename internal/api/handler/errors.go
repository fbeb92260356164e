package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	pkgerrors "github.com/dfberenson/ob-resident-scheduler/pkg/errors"
	"github.com/dfberenson/ob-resident-scheduler/pkg/response"
)

// CodeBadParams 请求参数校验失败
const CodeBadParams = 10001

// errorMapping 错误分类 → HTTP 状态码与业务码
type errorMapping struct {
	status int
	code   int
}

// errorTable 按模块分段：20xxx 周期，21xxx 任务，22xxx 版本，23xxx 排班项，24xxx 生成
var errorTable = map[string]errorMapping{
	"InvalidPeriod":             {http.StatusBadRequest, 20001},
	"PeriodNotFound":            {http.StatusNotFound, 20002},
	"OptimisticLock":            {http.StatusConflict, 20003},
	"UnknownJob":                {http.StatusNotFound, 21001},
	"JobQueueFull":              {http.StatusServiceUnavailable, 21002},
	"VersionNotFound":           {http.StatusNotFound, 22001},
	"AlreadyPublished":          {http.StatusConflict, 22002},
	"InvalidTransition":         {http.StatusConflict, 22003},
	"ConcurrentPublishConflict": {http.StatusConflict, 22004},
	"VersionNotEditable":        {http.StatusConflict, 22005},
	"AssignmentNotFound":        {http.StatusNotFound, 23001},
	"InvalidAssignment":         {http.StatusBadRequest, 23002},
	"DateOutOfRange":            {http.StatusBadRequest, 23003},
	"UnknownShiftType":          {http.StatusBadRequest, 23004},
	"GeneratorFailure":          {http.StatusBadGateway, 24001},
	"Timeout":                   {http.StatusGatewayTimeout, 24002},
}

// handleError 将业务错误写为统一响应；未分类错误记录日志并返回 500
func handleError(c *gin.Context, logger *zap.Logger, err error) {
	detail := pkgerrors.DetailOf(err)
	m, ok := errorTable[detail.Kind]
	if !ok {
		logger.Error("未处理的内部错误",
			zap.String("path", c.FullPath()),
			zap.Error(err),
		)
		response.InternalError(c)
		return
	}
	response.ErrorWithDetails(c, m.status, m.code, err.Error(), detail)
}

// handleBindError 参数绑定失败；shift_type 校验失败按未知班次处理
func handleBindError(c *gin.Context, err error) {
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) {
		fields := make([]string, 0, len(verrs))
		for _, fe := range verrs {
			if fe.Tag() == shiftTypeTag {
				m := errorTable["UnknownShiftType"]
				response.ErrorWithDetails(c, m.status, m.code, pkgerrors.ErrUnknownShiftType.Error(), pkgerrors.Detail{
					Kind:  "UnknownShiftType",
					Field: "shift_type",
				})
				return
			}
			fields = append(fields, fe.Field())
		}
		response.ErrorWithDetails(c, http.StatusBadRequest, CodeBadParams, "参数校验失败", gin.H{"fields": fields})
		return
	}
	response.BadRequest(c, CodeBadParams, "参数校验失败")
}
