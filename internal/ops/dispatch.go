package ops

import (
	"context"
	"encoding/json"
	"slices"

	"github.com/PlayerYK/TweetSift/internal/errors"
)

// MessageType names an inbound request.
type MessageType string

const (
	MsgCheckArchived          MessageType = "check-if-archived"
	MsgPrepareArchive         MessageType = "prepare-archive"
	MsgReportArchiveSuccess   MessageType = "report-archive-success"
	MsgReportArchiveRemoved   MessageType = "report-archive-removed"
	MsgGetEnabled             MessageType = "get-enabled"
	MsgSetEnabled             MessageType = "set-enabled"
	MsgGetStats               MessageType = "get-stats"
	MsgGetOperationStatus     MessageType = "get-operation-status"
	MsgReportOperationInvalid MessageType = "report-operation-invalid"
	MsgStartExport            MessageType = "start-export"
	MsgGetExportStatus        MessageType = "get-export-status"
	MsgClearExport            MessageType = "clear-export"

	MsgArchive        MessageType = "archive"
	MsgUndo           MessageType = "undo"
	MsgSaveFolder     MessageType = "save-folder"
	MsgGetCancelInfo  MessageType = "get-cancel-info"
	MsgListFolders    MessageType = "list-folders"
	MsgCancelExport   MessageType = "cancel-export"
	MsgClassify       MessageType = "classify"
	MsgObserveRequest MessageType = "observe-request"
)

// Message is a typed request envelope.
type Message struct {
	Type    MessageType     `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

type handler func(ctx context.Context, rt *Runtime, payload json.RawMessage) (any, error)

var handlers = map[MessageType]handler{
	MsgCheckArchived:          withInput(CheckArchived),
	MsgPrepareArchive:         withInput(PrepareArchive),
	MsgReportArchiveSuccess:   withInput(ReportArchiveSuccess),
	MsgReportArchiveRemoved:   withInput(ReportArchiveRemoved),
	MsgGetEnabled:             noInput(GetEnabled),
	MsgSetEnabled:             withInput(SetEnabled),
	MsgGetStats:               noInput(GetStats),
	MsgGetOperationStatus:     noInput(GetOperationStatus),
	MsgReportOperationInvalid: withInput(ReportOperationInvalid),
	MsgStartExport:            withInput(StartExport),
	MsgGetExportStatus:        noInput(GetExportStatus),
	MsgClearExport:            noInput(ClearExport),
	MsgArchive:                withInput(Archive),
	MsgUndo:                   withInput(Undo),
	MsgSaveFolder:             withInput(SaveFolder),
	MsgGetCancelInfo:          withInput(GetCancelInfo),
	MsgListFolders:            noInput(ListFolders),
	MsgCancelExport:           noInput(CancelExport),
	MsgClassify:               withInput(Classify),
	MsgObserveRequest:         withInput(ObserveRequest),
}

// MessageTypes returns every supported message type, sorted.
func MessageTypes() []MessageType {
	types := make([]MessageType, 0, len(handlers))
	for t := range handlers {
		types = append(types, t)
	}
	slices.Sort(types)
	return types
}

// Dispatch decodes payload for msgType and runs the matching operation.
func Dispatch(ctx context.Context, rt *Runtime, msgType MessageType, payload json.RawMessage) (any, error) {
	h, ok := handlers[msgType]
	if !ok {
		return nil, errors.NewInvalidRequest("unknown message type: " + string(msgType))
	}
	return h(ctx, rt, payload)
}

// DispatchMessage runs a decoded envelope.
func DispatchMessage(ctx context.Context, rt *Runtime, msg Message) (any, error) {
	return Dispatch(ctx, rt, msg.Type, msg.Payload)
}

func withInput[T, R any](fn func(context.Context, *Runtime, T) (R, error)) handler {
	return func(ctx context.Context, rt *Runtime, payload json.RawMessage) (any, error) {
		var in T
		if len(payload) > 0 && string(payload) != "null" {
			if err := json.Unmarshal(payload, &in); err != nil {
				return nil, errors.NewInvalidRequest("invalid payload: " + err.Error())
			}
		}
		out, err := fn(ctx, rt, in)
		if err != nil {
			return nil, err
		}
		return out, nil
	}
}

func noInput[R any](fn func(context.Context, *Runtime) (R, error)) handler {
	return func(ctx context.Context, rt *Runtime, _ json.RawMessage) (any, error) {
		out, err := fn(ctx, rt)
		if err != nil {
			return nil, err
		}
		return out, nil
	}
}
