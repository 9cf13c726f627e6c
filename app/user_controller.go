package app

import (
	"go.uber.org/zap"
)

// UserController serves the user directory. Its fields are injected when the
// router makes it for an action.
type UserController struct {
	Users   UserRepository
	Log     *zap.Logger
	PerPage int `default:"20"`
}

// ParamNames names the action parameters for the container.
func (c *UserController) ParamNames(method string) []string {
	if method == "Show" {
		return []string{"id", "requestID"}
	}
	return nil
}

// Index lists the first page of users.
func (c *UserController) Index() (map[string]any, error) {
	users, err := c.Users.All()
	if err != nil {
		return nil, err
	}
	total := len(users)
	if len(users) > c.PerPage {
		users = users[:c.PerPage]
	}
	return map[string]any{"data": users, "total": total, "per_page": c.PerPage}, nil
}

// Show returns a single user.
func (c *UserController) Show(id, requestID string) (User, error) {
	u, err := c.Users.Find(id)
	if err != nil {
		c.Log.Debug("user lookup failed", zap.String("id", id), zap.String("request_id", requestID))
		return User{}, err
	}
	return u, nil
}

// UserReport logs the size of the directory. It is run by the scheduler.
type UserReport struct {
	Users UserRepository
	Log   *zap.Logger
}

// Invoke runs the report.
func (r *UserReport) Invoke() (int, error) {
	users, err := r.Users.All()
	if err != nil {
		return 0, err
	}
	r.Log.Info("user report", zap.Int("users", len(users)))
	return len(users), nil
}
