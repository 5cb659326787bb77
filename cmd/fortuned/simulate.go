package main

import (
	"context"
	"fmt"
	"time"

	"fortune-letter/internal/config"
	"fortune-letter/internal/domain"
	"fortune-letter/internal/service"

	"github.com/spf13/cobra"
)

func newSimulateCmd() *cobra.Command {
	var count int

	cmd := &cobra.Command{
		Use:   "simulate",
		Short: "Drive orders through create, pay and confirm against the configured stack",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			ctx := cmd.Context()
			if ctx == nil {
				ctx = context.Background()
			}

			a, err := newApp(ctx, cfg)
			if err != nil {
				return err
			}
			defer a.close()

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "--- STARTING SIMULATION (%d ORDERS) ---\n", count)
			for i := 0; i < count; i++ {
				status, err := simulateOrder(ctx, a.orders, i)
				if err != nil {
					fmt.Fprintf(out, "[%d] FAILED: %v\n", i+1, err)
				} else {
					fmt.Fprintf(out, "[%d] SUCCESS\n", i+1)
				}
				if status != "" {
					fmt.Fprintf(out, "    -> DB Status: %s\n", status)
				}
			}
			return nil
		},
	}
	cmd.Flags().IntVarP(&count, "count", "n", 5, "number of orders to simulate")
	return cmd
}

func simulateOrder(ctx context.Context, orders service.OrderService, i int) (domain.OrderStatus, error) {
	order, err := orders.CreateOrder(ctx, domain.OrderInput{
		Name:      fmt.Sprintf("Guest %d", i+1),
		BirthDate: time.Date(1990+i%30, time.Month(i%12+1), i%28+1, 0, 0, 0, 0, time.UTC).Format(domain.BirthDateLayout),
		Story:     "simulated order",
	})
	if err != nil {
		return "", err
	}

	session, err := orders.RequestPayment(ctx, order.ID)
	if err != nil {
		return currentStatus(ctx, orders, order), err
	}

	_, err = orders.ConfirmAndGenerate(ctx, service.ConfirmInput{
		OrderID:         order.ID,
		ExternalOrderID: session.ExternalOrderID,
	})
	return currentStatus(ctx, orders, order), err
}

// currentStatus re-reads the order so the printed state is what was stored,
// not what the call returned.
func currentStatus(ctx context.Context, orders service.OrderService, order *domain.Order) domain.OrderStatus {
	details, err := orders.GetOrder(ctx, order.ID)
	if err != nil {
		return ""
	}
	return details.Order.Status
}
