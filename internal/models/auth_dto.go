package models

type RegisterRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

type LoginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

type TokenResponse struct {
	Status  string `json:"status"`
	Message string `json:"message"`
	Token   string `json:"token"`
}

type StatusResponse struct {
	Status  string `json:"status"`
	Message string `json:"message"`
}

type CreateTaskRequest struct {
	TaskName string `json:"task_name" validate:"required"`
}

type UpdateTaskRequest struct {
	TaskID     int    `json:"task_id" validate:"required"`
	TaskStatus string `json:"task_status" validate:"required"`
}

type DeleteTaskRequest struct {
	TaskID int `json:"task_id" validate:"required"`
}
