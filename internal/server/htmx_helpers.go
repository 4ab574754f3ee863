package server

import (
	"encoding/json"
	"fmt"
	"net/http"
)

// HTMX request/response helpers

// Client-side events raised through HX-Trigger
const (
	eventSceneChanged = "sceneChanged"
	eventNotify       = "notify"
)

// isHTMXRequest checks if the request was made by HTMX
func isHTMXRequest(r *http.Request) bool {
	return r.Header.Get("HX-Request") == "true"
}

// setHTMXTriggers sets several client-side events, each with its own detail payload
func setHTMXTriggers(w http.ResponseWriter, events map[string]interface{}) error {
	if len(events) == 0 {
		return nil
	}
	jsonData, err := json.Marshal(events)
	if err != nil {
		return fmt.Errorf("failed to marshal trigger data: %w", err)
	}
	w.Header().Set("HX-Trigger", string(jsonData))
	return nil
}

// NotifyLevel is the severity of an operator notification
type NotifyLevel string

const (
	NotifyInfo  NotifyLevel = "info"
	NotifyError NotifyLevel = "error"
)

// notification is the detail payload of the notify event
type notification struct {
	Message string      `json:"message"`
	Level   NotifyLevel `json:"level"`
}
