package handler

import "github.com/plan2bill/access-service/internal/core/domain"

type createRoleRequestRequest struct {
	RequestedRole string `json:"requested_role" validate:"required"`
	Reason        string `json:"reason"         validate:"max=500"`
}

type resolveRoleRequestRequest struct {
	Status string `json:"status" validate:"required"`
}

type roleRequestResponse struct {
	Success bool                      `json:"success"`
	Message string                    `json:"message,omitempty"`
	Request *domain.RoleChangeRequest `json:"request"`
}

type roleRequestListResponse struct {
	Success  bool                        `json:"success"`
	Requests []*domain.RoleChangeRequest `json:"requests"`
}

type roleRequestViewListResponse struct {
	Success  bool                            `json:"success"`
	Requests []*domain.RoleChangeRequestView `json:"requests"`
}

type messageResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}
