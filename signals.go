package firm

import (
	"context"
	"time"

	"github.com/zoobzio/capitan"
)

// Signals for firm events.
var (
	SignalTypeRegistered   = capitan.NewSignal("firm.type.registered", "Serializable type registered")
	SignalFormatRegistered = capitan.NewSignal("firm.format.registered", "Format engine registered")
	SignalDumpStart        = capitan.NewSignal("firm.dump.start", "Dump operation beginning")
	SignalDumpComplete     = capitan.NewSignal("firm.dump.complete", "Dump operation finished")
	SignalLoadStart        = capitan.NewSignal("firm.load.start", "Load operation beginning")
	SignalLoadComplete     = capitan.NewSignal("firm.load.complete", "Load operation finished")
)

// Keys for typed event data.
var (
	KeyFormat      = capitan.NewStringKey("format")
	KeyContentType = capitan.NewStringKey("content_type")
	KeyTypeName    = capitan.NewStringKey("type_name")
	KeyProperties  = capitan.NewIntKey("properties")
	KeySize        = capitan.NewIntKey("size")
	KeyDuration    = capitan.NewDurationKey("duration")
	KeyError       = capitan.NewErrorKey("error")
	KeyObjects     = capitan.NewIntKey("objects")
	KeyAnchors     = capitan.NewIntKey("anchors")
	KeyAliases     = capitan.NewIntKey("aliases")
)

// stats counts graph activity of a single dump or load.
type stats struct {
	objects int
	anchors int
	aliases int
}

// emitTypeRegistered emits an event when a type is registered.
func emitTypeRegistered(ctx context.Context, typeName string, properties int) {
	capitan.Emit(ctx, SignalTypeRegistered,
		KeyTypeName.Field(typeName),
		KeyProperties.Field(properties),
	)
}

// emitFormatRegistered emits an event when a format engine is registered.
func emitFormatRegistered(ctx context.Context, format, contentType string) {
	capitan.Emit(ctx, SignalFormatRegistered,
		KeyFormat.Field(format),
		KeyContentType.Field(contentType),
	)
}

// emitDumpStart emits an event when dump begins.
func emitDumpStart(ctx context.Context, format, typeName string) {
	capitan.Emit(ctx, SignalDumpStart,
		KeyFormat.Field(format),
		KeyTypeName.Field(typeName),
	)
}

// emitDumpComplete emits an event when dump finishes.
func emitDumpComplete(ctx context.Context, format, typeName string, size int, duration time.Duration, st stats, err error) {
	fields := []capitan.Field{
		KeyFormat.Field(format),
		KeyTypeName.Field(typeName),
		KeySize.Field(size),
		KeyDuration.Field(duration),
		KeyObjects.Field(st.objects),
		KeyAnchors.Field(st.anchors),
		KeyAliases.Field(st.aliases),
	}
	if err != nil {
		fields = append(fields, KeyError.Field(err))
		capitan.Error(ctx, SignalDumpComplete, fields...)
	} else {
		capitan.Emit(ctx, SignalDumpComplete, fields...)
	}
}

// emitLoadStart emits an event when load begins.
func emitLoadStart(ctx context.Context, format string, size int) {
	capitan.Emit(ctx, SignalLoadStart,
		KeyFormat.Field(format),
		KeySize.Field(size),
	)
}

// emitLoadComplete emits an event when load finishes.
func emitLoadComplete(ctx context.Context, format, typeName string, duration time.Duration, st stats, err error) {
	fields := []capitan.Field{
		KeyFormat.Field(format),
		KeyTypeName.Field(typeName),
		KeyDuration.Field(duration),
		KeyObjects.Field(st.objects),
		KeyAnchors.Field(st.anchors),
		KeyAliases.Field(st.aliases),
	}
	if err != nil {
		fields = append(fields, KeyError.Field(err))
		capitan.Error(ctx, SignalLoadComplete, fields...)
	} else {
		capitan.Emit(ctx, SignalLoadComplete, fields...)
	}
}
