package main

import (
	"github.com/spf13/cobra"

	"github.com/dfberenson/ob-resident-scheduler/internal/dto"
	"github.com/dfberenson/ob-resident-scheduler/internal/repository"
	"github.com/dfberenson/ob-resident-scheduler/internal/service"
)

func newOpenMonthCmd(open func() (*env, error)) *cobra.Command {
	var (
		year  int
		month int
		name  string
	)

	cmd := &cobra.Command{
		Use:   "open-month",
		Short: "Create the schedule period covering one calendar month",
		RunE: func(c *cobra.Command, _ []string) error {
			e, err := open()
			if err != nil {
				return err
			}
			defer e.close()

			req := &dto.OpenMonthRequest{Year: year, Month: month}
			if name != "" {
				req.Name = &name
			}

			svc := service.NewPeriodService(repository.NewRepository(e.db), e.logger)
			period, err := svc.OpenMonth(c.Context(), req)
			if err != nil {
				return err
			}
			return writeJSON(c.OutOrStdout(), period)
		},
	}

	cmd.Flags().IntVar(&year, "year", 0, "年份 (required)")
	cmd.Flags().IntVar(&month, "month", 0, "月份 1-12 (required)")
	cmd.Flags().StringVar(&name, "name", "", "周期名称，缺省为 \"January 2024\" 形式")
	_ = cmd.MarkFlagRequired("year")
	_ = cmd.MarkFlagRequired("month")
	return cmd
}
