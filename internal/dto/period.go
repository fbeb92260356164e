package dto

// ── 排班周期 DTO ──

// CreatePeriodRequest 创建周期请求
type CreatePeriodRequest struct {
	Name      string `json:"name"       binding:"required,min=1,max=100"`
	StartDate string `json:"start_date" binding:"required,datetime=2006-01-02"` // "2024-01-01"
	EndDate   string `json:"end_date"   binding:"required,datetime=2006-01-02"` // "2024-01-31"
}

// OpenMonthRequest 按自然月创建周期
type OpenMonthRequest struct {
	Year  int     `json:"year"  binding:"required,min=2000,max=2100"`
	Month int     `json:"month" binding:"required,min=1,max=12"`
	Name  *string `json:"name"  binding:"omitempty,min=1,max=100"` // 缺省为 "January 2024"
}

// UpdatePeriodRequest 修改周期名称（日期不可修改）
type UpdatePeriodRequest struct {
	Name    string `json:"name"    binding:"required,min=1,max=100"`
	Version int    `json:"version" binding:"required,min=1"` // 乐观锁版本号
}

// PeriodResponse 周期信息响应
type PeriodResponse struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	StartDate string `json:"start_date"`
	EndDate   string `json:"end_date"`
	Version   int    `json:"version"`
	CreatedAt string `json:"created_at"`
	UpdatedAt string `json:"updated_at"`
}
