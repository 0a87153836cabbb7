package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/plan2bill/access-service/internal/core/domain"
	"github.com/plan2bill/access-service/internal/core/ports"
)

// RoleRequestHandler exposes the role-change request lifecycle.
type RoleRequestHandler struct {
	service ports.RoleRequestService
}

func NewRoleRequestHandler(service ports.RoleRequestService) *RoleRequestHandler {
	return &RoleRequestHandler{service: service}
}

// Create handles POST /role-requests.
//
// @Summary      Request a role upgrade
// @Tags         role-requests
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        body  body      createRoleRequestRequest  true  "Requested role and reason"
// @Success      201   {object}  roleRequestResponse
// @Failure      400   {object}  api.ErrorResponse
// @Failure      401   {object}  api.ErrorResponse
// @Failure      429   {object}  api.ErrorResponse
// @Failure      500   {object}  api.ErrorResponse
// @Router       /role-requests [post]
func (h *RoleRequestHandler) Create(c echo.Context) error {
	id, err := ctxIdentity(c)
	if err != nil {
		return err
	}

	var req createRoleRequestRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid payload")
	}
	if err := c.Validate(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	created, err := h.service.Create(c.Request().Context(), id, ports.CreateRoleRequestInput{
		RequestedRole: req.RequestedRole,
		Reason:        req.Reason,
	})
	if err != nil {
		return err
	}

	return c.JSON(http.StatusCreated, roleRequestResponse{
		Success: true,
		Message: "Role request submitted successfully.",
		Request: created,
	})
}

// ListAll handles GET /role-requests.
//
// @Summary      List all role requests
// @Tags         role-requests
// @Produce      json
// @Security     BearerAuth
// @Success      200   {object}  roleRequestViewListResponse
// @Failure      401   {object}  api.ErrorResponse
// @Failure      403   {object}  api.ErrorResponse
// @Router       /role-requests [get]
func (h *RoleRequestHandler) ListAll(c echo.Context) error {
	id, err := ctxIdentity(c)
	if err != nil {
		return err
	}

	items, err := h.service.ListAll(c.Request().Context(), id)
	if err != nil {
		return err
	}
	if items == nil {
		items = []*domain.RoleChangeRequestView{}
	}
	return c.JSON(http.StatusOK, roleRequestViewListResponse{Success: true, Requests: items})
}

// ListMine handles GET /role-requests/my.
//
// @Summary      List own role requests
// @Tags         role-requests
// @Produce      json
// @Security     BearerAuth
// @Success      200   {object}  roleRequestListResponse
// @Failure      401   {object}  api.ErrorResponse
// @Router       /role-requests/my [get]
func (h *RoleRequestHandler) ListMine(c echo.Context) error {
	id, err := ctxIdentity(c)
	if err != nil {
		return err
	}

	items, err := h.service.ListMine(c.Request().Context(), id)
	if err != nil {
		return err
	}
	if items == nil {
		items = []*domain.RoleChangeRequest{}
	}
	return c.JSON(http.StatusOK, roleRequestListResponse{Success: true, Requests: items})
}

// Resolve handles PUT /role-requests/:id.
//
// @Summary      Approve or reject a role request
// @Tags         role-requests
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        id    path      string                     true  "Role request ID"
// @Param        body  body      resolveRoleRequestRequest  true  "Decision"
// @Success      200   {object}  roleRequestResponse
// @Failure      400   {object}  api.ErrorResponse
// @Failure      401   {object}  api.ErrorResponse
// @Failure      403   {object}  api.ErrorResponse
// @Failure      404   {object}  api.ErrorResponse
// @Router       /role-requests/{id} [put]
func (h *RoleRequestHandler) Resolve(c echo.Context) error {
	id, err := ctxIdentity(c)
	if err != nil {
		return err
	}

	var req resolveRoleRequestRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid payload")
	}
	if err := c.Validate(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	resolved, err := h.service.Resolve(c.Request().Context(), id, c.Param("id"), req.Status)
	if err != nil {
		return err
	}

	return c.JSON(http.StatusOK, roleRequestResponse{
		Success: true,
		Message: "Role request " + string(resolved.Status) + ".",
		Request: resolved,
	})
}

// Delete handles DELETE /role-requests/:id.
//
// @Summary      Delete a role request
// @Tags         role-requests
// @Produce      json
// @Security     BearerAuth
// @Param        id    path      string  true  "Role request ID"
// @Success      200   {object}  messageResponse
// @Failure      401   {object}  api.ErrorResponse
// @Failure      403   {object}  api.ErrorResponse
// @Failure      404   {object}  api.ErrorResponse
// @Router       /role-requests/{id} [delete]
func (h *RoleRequestHandler) Delete(c echo.Context) error {
	id, err := ctxIdentity(c)
	if err != nil {
		return err
	}

	if err := h.service.Delete(c.Request().Context(), id, c.Param("id")); err != nil {
		return err
	}
	return c.JSON(http.StatusOK, messageResponse{Success: true, Message: "Role request deleted."})
}
