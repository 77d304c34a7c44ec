package handlers

import (
	"errors"
	"net/http"
	"strings"

	"events_crm_backend/internal/services"
	"events_crm_backend/pkg/utils"

	"github.com/gin-gonic/gin"
)

// Multipart field names of the upload form.
const (
	UploadFileField     = "ClientImg"
	UploadClientIDField = "ClientId"
)

// PhotoHandler holds the photo service.
type PhotoHandler struct {
	photoService   services.PhotoService
	maxUploadBytes int64
}

// NewPhotoHandler creates a new PhotoHandler. Uploads larger than
// maxUploadBytes are rejected with 413.
func NewPhotoHandler(ps services.PhotoService, maxUploadBytes int64) *PhotoHandler {
	return &PhotoHandler{photoService: ps, maxUploadBytes: maxUploadBytes}
}

func (h *PhotoHandler) tooLarge(c *gin.Context, details string) {
	utils.RespondWithError(c, utils.NewAPIError(http.StatusRequestEntityTooLarge, utils.ErrCodePayloadTooLarge, "Uploaded file is too large.", details))
}

// UploadPhoto handles the multipart profile photo upload.
func (h *PhotoHandler) UploadPhoto(c *gin.Context) {
	scope, ok := requireScope(c)
	if !ok {
		return
	}

	// Multipart framing needs some room beyond the file itself.
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, h.maxUploadBytes+1<<20)

	fileHeader, err := c.FormFile(UploadFileField)
	if err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			h.tooLarge(c, err.Error())
			return
		}
		utils.RespondWithMessage(c, http.StatusBadRequest, "No files were uploaded")
		return
	}
	if fileHeader.Size > h.maxUploadBytes {
		h.tooLarge(c, fileHeader.Filename)
		return
	}

	file, err := fileHeader.Open()
	if err != nil {
		utils.LogError(err, "UploadPhoto: Failed to open uploaded file")
		utils.RespondWithError(c, utils.NewAPIError(http.StatusInternalServerError, utils.ErrCodeInternalServerError, "Failed to read uploaded file.", err.Error()))
		return
	}
	defer file.Close()

	clientID := strings.TrimSpace(c.PostForm(UploadClientIDField))
	client, err := h.photoService.UploadPhoto(c.Request.Context(), scope, clientID, &services.PhotoUpload{
		Filename: fileHeader.Filename,
		Content:  file,
	})
	if err != nil {
		utils.LogError(err, "UploadPhoto: Error from photoService.UploadPhoto for client "+clientID)
		switch {
		case errors.Is(err, services.ErrClientNotFound):
			utils.RespondWithMessage(c, http.StatusNotFound, "No files were uploaded!")
		case errors.Is(err, services.ErrNoFileUploaded):
			utils.RespondWithMessage(c, http.StatusBadRequest, "No files were uploaded")
		case errors.Is(err, services.ErrUnsupportedFileType):
			utils.RespondWithError(c, utils.NewAPIError(http.StatusBadRequest, utils.ErrCodeValidationFailed, "Uploaded file must be an image.", err.Error()))
		default:
			utils.RespondWithError(c, utils.NewAPIError(http.StatusInternalServerError, utils.ErrCodeInternalServerError, "Failed to upload photo.", err.Error()))
		}
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "File uploaded", "user": client})
}

// DeletePhoto handles removing a client's profile photo.
func (h *PhotoHandler) DeletePhoto(c *gin.Context) {
	scope, ok := requireScope(c)
	if !ok {
		return
	}
	clientID := c.Param("id")

	client, err := h.photoService.DeletePhoto(c.Request.Context(), scope, clientID)
	if err != nil {
		utils.LogError(err, "DeletePhoto: Error from photoService.DeletePhoto for client "+clientID)
		if errors.Is(err, services.ErrClientNotFound) {
			utils.RespondWithError(c, utils.NewAPIError(http.StatusNotFound, utils.ErrCodeNotFound, "Client not found.", err.Error()))
		} else {
			utils.RespondWithError(c, utils.NewAPIError(http.StatusInternalServerError, utils.ErrCodeInternalServerError, err.Error(), err.Error()))
		}
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Profile photo deleted", "user": client})
}

// ServePhoto streams a stored photo.
func (h *PhotoHandler) ServePhoto(c *gin.Context) {
	path, err := h.photoService.PhotoPath(c.Param("filename"))
	if err != nil {
		if errors.Is(err, services.ErrPhotoNotFound) {
			utils.RespondWithError(c, utils.NewAPIError(http.StatusNotFound, utils.ErrCodeNotFound, "Photo not found.", ""))
		} else {
			utils.LogError(err, "ServePhoto: Error from photoService.PhotoPath")
			utils.RespondWithError(c, utils.NewAPIError(http.StatusInternalServerError, utils.ErrCodeInternalServerError, "Failed to load photo.", err.Error()))
		}
		return
	}
	c.File(path)
}
