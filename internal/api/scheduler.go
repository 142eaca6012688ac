package api

import (
	"context"
	"net/http"
)

// DefaultCron is the price-check schedule used when none is given.
const DefaultCron = "0 */6 * * *"

type schedulerStatus struct {
	IsRunning bool `json:"isRunning"`
}

// StartScheduler starts the server-side price-check scheduler. An empty
// cronExpr selects DefaultCron.
func (c *Client) StartScheduler(ctx context.Context, cronExpr string) error {
	if cronExpr == "" {
		cronExpr = DefaultCron
	}
	_, err := c.do(ctx, requestOpts{
		method: http.MethodPost,
		path:   "/schedule/start",
		body:   map[string]string{"cronExpression": cronExpr},
	})
	return err
}

// StopScheduler stops the scheduler.
func (c *Client) StopScheduler(ctx context.Context) error {
	_, err := c.do(ctx, requestOpts{method: http.MethodPost, path: "/schedule/stop"})
	return err
}

// SchedulerStatus reports whether the scheduler is running.
func (c *Client) SchedulerStatus(ctx context.Context) (bool, error) {
	body, err := c.do(ctx, requestOpts{method: http.MethodGet, path: "/schedule/status"})
	if err != nil {
		return false, err
	}
	return decodeData[schedulerStatus](body).IsRunning, nil
}

// CheckNow triggers an immediate price check for all products.
func (c *Client) CheckNow(ctx context.Context) error {
	_, err := c.do(ctx, requestOpts{method: http.MethodPost, path: "/schedule/check-now"})
	return err
}
