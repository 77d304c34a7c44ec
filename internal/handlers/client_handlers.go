package handlers

import (
	"errors"
	"net/http"

	"events_crm_backend/internal/middleware"
	"events_crm_backend/internal/models"
	"events_crm_backend/internal/services"
	"events_crm_backend/pkg/utils"

	"github.com/gin-gonic/gin"
)

// ClientHandler holds the client service.
type ClientHandler struct {
	clientService services.ClientService
}

// NewClientHandler creates a new ClientHandler.
func NewClientHandler(cs services.ClientService) *ClientHandler {
	return &ClientHandler{clientService: cs}
}

// requireScope reads the organization scope set by the auth middleware.
func requireScope(c *gin.Context) (models.Scope, bool) {
	scope, ok := middleware.ScopeFromContext(c)
	if !ok {
		utils.RespondWithError(c, utils.NewAPIError(http.StatusUnauthorized, utils.ErrCodeUnauthorized, "Request is not scoped to an organization.", ""))
		return models.Scope{}, false
	}
	return scope, true
}

// GetClients handles listing every client of the organization.
func (h *ClientHandler) GetClients(c *gin.Context) {
	scope, ok := requireScope(c)
	if !ok {
		return
	}

	clients, err := h.clientService.GetClients(c.Request.Context(), scope)
	if err != nil {
		utils.LogError(err, "GetClients: Error from clientService.GetClients")
		utils.RespondWithError(c, utils.NewAPIError(http.StatusInternalServerError, utils.ErrCodeInternalServerError, "Failed to fetch clients.", err.Error()))
		return
	}
	if clients == nil {
		clients = []models.Client{}
	}
	c.JSON(http.StatusOK, clients)
}

// GetClientByID handles fetching a single client by ID.
func (h *ClientHandler) GetClientByID(c *gin.Context) {
	scope, ok := requireScope(c)
	if !ok {
		return
	}
	clientID := c.Param("id")

	client, err := h.clientService.GetClientByID(c.Request.Context(), scope, clientID)
	if err != nil {
		utils.LogError(err, "GetClientByID: Error from clientService.GetClientByID for ID "+clientID)
		if errors.Is(err, services.ErrClientNotFound) {
			utils.RespondWithError(c, utils.NewAPIError(http.StatusBadRequest, utils.ErrCodeNotFound, "Client not found.", err.Error()))
		} else {
			utils.RespondWithError(c, utils.NewAPIError(http.StatusInternalServerError, utils.ErrCodeInternalServerError, "Failed to fetch client.", err.Error()))
		}
		return
	}
	c.JSON(http.StatusOK, client)
}

// GetClientDetails handles fetching a client with its registered and
// not-registered events.
func (h *ClientHandler) GetClientDetails(c *gin.Context) {
	scope, ok := requireScope(c)
	if !ok {
		return
	}
	clientID := c.Param("id")

	details, err := h.clientService.GetClientDetails(c.Request.Context(), scope, clientID)
	if err != nil {
		utils.LogError(err, "GetClientDetails: Error from clientService.GetClientDetails for ID "+clientID)
		if errors.Is(err, services.ErrClientNotFound) {
			utils.RespondWithError(c, utils.NewAPIError(http.StatusBadRequest, utils.ErrCodeNotFound, "Client not found.", err.Error()))
		} else {
			utils.RespondWithError(c, utils.NewAPIError(http.StatusInternalServerError, utils.ErrCodeInternalServerError, "Failed to fetch client details.", err.Error()))
		}
		return
	}
	if details.ClientEvents == nil {
		details.ClientEvents = []models.Event{}
	}
	if details.EventsFiltered == nil {
		details.EventsFiltered = []models.Event{}
	}
	c.JSON(http.StatusOK, details)
}

// SearchClients handles name or phone number search.
func (h *ClientHandler) SearchClients(c *gin.Context) {
	scope, ok := requireScope(c)
	if !ok {
		return
	}

	var req services.SearchClientsRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		utils.RespondWithError(c, utils.NewAPIError(http.StatusBadRequest, utils.ErrCodeBadRequest, "Invalid search parameters.", err.Error()))
		return
	}

	clients, err := h.clientService.SearchClients(c.Request.Context(), scope, req)
	if err != nil {
		utils.LogError(err, "SearchClients: Error from clientService.SearchClients")
		if errors.Is(err, services.ErrInvalidSearchBy) {
			utils.RespondWithError(c, utils.NewAPIError(http.StatusBadRequest, utils.ErrCodeBadRequest, "Invalid searchBy parameter.", err.Error()))
		} else {
			utils.RespondWithError(c, utils.NewAPIError(http.StatusInternalServerError, utils.ErrCodeInternalServerError, "Failed to search clients.", err.Error()))
		}
		return
	}
	if clients == nil {
		clients = []models.Client{}
	}
	c.JSON(http.StatusOK, clients)
}

// CreateClient handles the creation of a new client.
func (h *ClientHandler) CreateClient(c *gin.Context) {
	scope, ok := requireScope(c)
	if !ok {
		return
	}

	var req services.CreateClientRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.LogError(err, "CreateClient: Failed to bind JSON")
		utils.RespondWithError(c, utils.NewAPIError(http.StatusBadRequest, utils.ErrCodeValidationFailed, "Invalid request payload: "+err.Error(), err.Error()))
		return
	}

	id, err := h.clientService.CreateClient(c.Request.Context(), scope, req)
	if err != nil {
		utils.LogError(err, "CreateClient: Error from clientService.CreateClient")
		if errors.Is(err, services.ErrClientValidation) {
			utils.RespondWithError(c, utils.NewAPIError(http.StatusBadRequest, utils.ErrCodeValidationFailed, "Validation failed: "+err.Error(), err.Error()))
		} else {
			utils.RespondWithError(c, utils.NewAPIError(http.StatusInternalServerError, utils.ErrCodeInternalServerError, "Failed to create client.", err.Error()))
		}
		return
	}
	c.JSON(http.StatusOK, gin.H{"id": id, "message": "Client created"})
}

// UpdateClient handles a partial update of a client.
func (h *ClientHandler) UpdateClient(c *gin.Context) {
	scope, ok := requireScope(c)
	if !ok {
		return
	}
	clientID := c.Param("id")

	var req services.UpdateClientRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.LogError(err, "UpdateClient: Failed to bind JSON for ID "+clientID)
		utils.RespondWithError(c, utils.NewAPIError(http.StatusBadRequest, utils.ErrCodeValidationFailed, "Invalid request payload: "+err.Error(), err.Error()))
		return
	}

	if _, err := h.clientService.UpdateClient(c.Request.Context(), scope, clientID, req); err != nil {
		utils.LogError(err, "UpdateClient: Error from clientService.UpdateClient for ID "+clientID)
		if errors.Is(err, services.ErrClientNotFound) {
			utils.RespondWithError(c, utils.NewAPIError(http.StatusBadRequest, utils.ErrCodeNotFound, "Client not found to update.", err.Error()))
		} else if errors.Is(err, services.ErrClientValidation) {
			utils.RespondWithError(c, utils.NewAPIError(http.StatusBadRequest, utils.ErrCodeValidationFailed, "Validation failed: "+err.Error(), err.Error()))
		} else {
			utils.RespondWithError(c, utils.NewAPIError(http.StatusInternalServerError, utils.ErrCodeInternalServerError, "Failed to update client.", err.Error()))
		}
		return
	}
	utils.RespondWithMessage(c, http.StatusCreated, "Client updated")
}

// DeleteClient handles deleting a client that attends no events.
func (h *ClientHandler) DeleteClient(c *gin.Context) {
	scope, ok := requireScope(c)
	if !ok {
		return
	}
	clientID := c.Param("id")

	err := h.clientService.DeleteClient(c.Request.Context(), scope, clientID)
	if err != nil {
		utils.LogError(err, "DeleteClient: Error from clientService.DeleteClient for ID "+clientID)
		switch {
		case errors.Is(err, services.ErrClientNotFound):
			utils.RespondWithError(c, utils.NewAPIError(http.StatusBadRequest, utils.ErrCodeNotFound, "Client not found to delete.", err.Error()))
		case errors.Is(err, services.ErrClientHasEvents):
			utils.RespondWithError(c, utils.NewAPIError(http.StatusNotAcceptable, utils.ErrCodeConflict, "Client is signed up for events and can't be deleted.", err.Error()))
		default:
			utils.RespondWithError(c, utils.NewAPIError(http.StatusInternalServerError, utils.ErrCodeInternalServerError, "Failed to delete client.", err.Error()))
		}
		return
	}
	utils.RespondWithMessage(c, http.StatusOK, "Client deleted")
}

// GetClientsByZip handles the clients-per-zip aggregate.
func (h *ClientHandler) GetClientsByZip(c *gin.Context) {
	scope, ok := requireScope(c)
	if !ok {
		return
	}

	counts, err := h.clientService.GetClientCountsByZip(c.Request.Context(), scope)
	if err != nil {
		utils.LogError(err, "GetClientsByZip: Error from clientService.GetClientCountsByZip")
		utils.RespondWithError(c, utils.NewAPIError(http.StatusInternalServerError, utils.ErrCodeInternalServerError, "Failed to aggregate clients by zip.", err.Error()))
		return
	}
	if counts == nil {
		counts = []models.ZipCount{}
	}
	c.JSON(http.StatusOK, counts)
}
