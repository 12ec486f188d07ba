package otelhelper

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

func TestSetError_MarksSpanFailed(t *testing.T) {
	recorder := tracetest.NewSpanRecorder()
	tracer := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder)).Tracer("test")

	_, span := tracer.Start(context.Background(), "stage.getUser")
	SetError(span, errors.New("status 500, expected 200"), attribute.String(StageNameKey, "getUser"))
	span.End()

	spans := recorder.Ended()
	require.Len(t, spans, 1)
	assert.Equal(t, codes.Error, spans[0].Status().Code)
	assert.Equal(t, "status 500, expected 200", spans[0].Status().Description)
	require.Len(t, spans[0].Events(), 1)
}

func TestSetError_NilSpanIsNoOp(t *testing.T) {
	require.NotPanics(t, func() {
		SetError(nil, errors.New("boom"))
	})
}

func TestSetError_NilErrorIsNoOp(t *testing.T) {
	recorder := tracetest.NewSpanRecorder()
	tracer := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder)).Tracer("test")

	_, span := tracer.Start(context.Background(), "stage.getUser")
	SetError(span, nil)
	span.End()

	spans := recorder.Ended()
	require.Len(t, spans, 1)
	assert.Equal(t, codes.Unset, spans[0].Status().Code)
	assert.Empty(t, spans[0].Events())
}
