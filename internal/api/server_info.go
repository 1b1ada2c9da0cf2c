package api

import (
	"net/http"

	"echobox/internal/constants"
	"echobox/internal/ws"
)

type ServerInfoHandler struct {
	serverName  string
	storageMode string
	uploadMax   int64
}

func NewServerInfoHandler(name, storageMode string, uploadMax int64) *ServerInfoHandler {
	return &ServerInfoHandler{
		serverName:  name,
		storageMode: storageMode,
		uploadMax:   uploadMax,
	}
}

type ServerInfoResponse struct {
	Name               string `json:"name"`
	StorageMode        string `json:"storageMode"`
	UploadMaxBytes     int64  `json:"uploadMaxBytes"`
	MaxCaptionLength   int    `json:"maxCaptionLength"`
	ProtocolVersion    int    `json:"protocolVersion"`
	GoLiveDelaySeconds int64  `json:"goLiveDelaySeconds"`
}

// GET /api/v1/server/info
func (h *ServerInfoHandler) GetInfo(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, ServerInfoResponse{
		Name:               h.serverName,
		StorageMode:        h.storageMode,
		UploadMaxBytes:     h.uploadMax,
		MaxCaptionLength:   constants.MaxCaptionLength,
		ProtocolVersion:    ws.ProtocolVersion,
		GoLiveDelaySeconds: int64(constants.GoLiveDelay.Seconds()),
	})
}
