// Package generator 通过 NATS request/reply 调用外部排班求解器。
package generator

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"
	"go.uber.org/zap"

	"github.com/dfberenson/ob-resident-scheduler/config"
	pkgerrors "github.com/dfberenson/ob-resident-scheduler/pkg/errors"
)

// ── 求解器报文 ──

// Resident 求解输入中的住院医师
type Resident struct {
	ID                string `json:"id"`
	Tier              int    `json:"tier"`
	OBMonthsCompleted int    `json:"ob_months_completed"`
}

// Request 已批准的排班申请
type Request struct {
	ResidentID  string `json:"resident_id"`
	RequestType string `json:"request_type"`
	StartDate   string `json:"start_date"`
	EndDate     string `json:"end_date"`
}

// TimeOff 已批准的请假区间
type TimeOff struct {
	ResidentID string `json:"resident_id"`
	StartDate  string `json:"start_date"`
	EndDate    string `json:"end_date"`
	BlockType  string `json:"block_type"`
}

// Input 单个周期的完整求解输入，日期均为 YYYY-MM-DD
type Input struct {
	PeriodID    string          `json:"period_id"`
	StartDate   string          `json:"start_date"`
	EndDate     string          `json:"end_date"`
	Residents   []Resident      `json:"residents"`
	Requests    []Request       `json:"requests"`
	TimeOff     []TimeOff       `json:"time_off"`
	Holidays    []string        `json:"holidays"` // 仅包含医院确认放假的日期
	Constraints json.RawMessage `json:"constraints,omitempty"`
}

// Assignment 求解结果中的排班项
type Assignment struct {
	ResidentID string `json:"resident_id"`
	Date       string `json:"date"`
	ShiftType  string `json:"shift_type"`
}

// Alert 求解器告警
type Alert struct {
	Date     string `json:"date"`
	Message  string `json:"message"`
	Severity string `json:"severity,omitempty"`
}

// Result 求解结果
type Result struct {
	Assignments   []Assignment    `json:"assignments"`
	Alerts        []Alert         `json:"alerts"`
	Fairness      json.RawMessage `json:"fairness,omitempty"`
	UnmetRequests json.RawMessage `json:"unmet_requests,omitempty"`
}

// Reply 求解器应答；Error 非空表示求解失败
type Reply struct {
	Result *Result `json:"result,omitempty"`
	Error  string  `json:"error,omitempty"`
}

// Generator 排班求解器
type Generator interface {
	Generate(ctx context.Context, in *Input) (*Result, error)
}

// ════════════════════════════════════════════════════════════
// NATS 实现
// ════════════════════════════════════════════════════════════

// NATSGenerator 基于 NATS request/reply 的求解器客户端
type NATSGenerator struct {
	nc      *nats.Conn
	subject string
	timeout time.Duration
	logger  *zap.Logger
}

var _ Generator = (*NATSGenerator)(nil)

// Connect 连接 NATS 并创建求解器客户端
func Connect(cfg *config.GeneratorConfig, logger *zap.Logger) (*NATSGenerator, error) {
	nc, err := nats.Connect(cfg.NATSURL,
		nats.Name("ob-scheduler"),
		nats.Timeout(5*time.Second),
		nats.RetryOnFailedConnect(true),
		nats.MaxReconnects(-1),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				logger.Warn("NATS 连接断开", zap.Error(err))
			}
		}),
		nats.ReconnectHandler(func(c *nats.Conn) {
			logger.Info("NATS 重新连接成功", zap.String("url", c.ConnectedUrl()))
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("NATS 连接失败: %w", err)
	}

	logger.Info("NATS 连接成功", zap.String("url", cfg.NATSURL), zap.String("subject", cfg.Subject))
	return New(nc, cfg.Subject, cfg.RequestTimeout, logger), nil
}

// New 基于已有连接创建客户端
func New(nc *nats.Conn, subject string, timeout time.Duration, logger *zap.Logger) *NATSGenerator {
	return &NATSGenerator{nc: nc, subject: subject, timeout: timeout, logger: logger}
}

// Generate 发送求解请求并等待应答
// 超时返回 ErrTimeout，其余失败统一归类为 ErrGeneratorFailure
func (g *NATSGenerator) Generate(ctx context.Context, in *Input) (*Result, error) {
	payload, err := json.Marshal(in)
	if err != nil {
		return nil, fmt.Errorf("序列化求解输入失败: %w", err)
	}

	if _, ok := ctx.Deadline(); !ok && g.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, g.timeout)
		defer cancel()
	}

	start := time.Now()
	msg, err := g.nc.RequestWithContext(ctx, g.subject, payload)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, nats.ErrTimeout) {
			return nil, pkgerrors.Wrap(pkgerrors.ErrTimeout, in.PeriodID, err)
		}
		return nil, pkgerrors.Wrap(pkgerrors.ErrGeneratorFailure, in.PeriodID, err)
	}

	var reply Reply
	if err := json.Unmarshal(msg.Data, &reply); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.ErrGeneratorFailure, in.PeriodID, fmt.Errorf("解析求解应答失败: %w", err))
	}
	if reply.Error != "" {
		return nil, pkgerrors.Wrap(pkgerrors.ErrGeneratorFailure, in.PeriodID, errors.New(reply.Error))
	}
	if reply.Result == nil {
		return nil, pkgerrors.Wrap(pkgerrors.ErrGeneratorFailure, in.PeriodID, errors.New("求解应答缺少 result"))
	}

	g.logger.Info("求解完成",
		zap.String("period_id", in.PeriodID),
		zap.Int("assignments", len(reply.Result.Assignments)),
		zap.Int("alerts", len(reply.Result.Alerts)),
		zap.Duration("elapsed", time.Since(start)),
	)
	return reply.Result, nil
}

// Close 排空并关闭连接
func (g *NATSGenerator) Close() error {
	return g.nc.Drain()
}
