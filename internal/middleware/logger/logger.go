package logger

import (
	"context"
	"io"
	"log"
	"net/http"
	"os"

	"github.com/sirupsen/logrus"
)

type loggerKey string

const contextKey loggerKey = "logger"

var logger = logrus.New()

func Initialize(loggingVerbosity string) {
	InitializeWithOutput(loggingVerbosity, os.Stdout)
}

// InitializeWithOutput configures the process logger to write JSON lines to out
func InitializeWithOutput(loggingVerbosity string, out io.Writer) {
	level, err := logrus.ParseLevel(loggingVerbosity)
	// Signal that we are about to enter the desired verbosity
	log.Printf("Setting logging verbosity level to: %s (%d)\n", loggingVerbosity, level)

	if err != nil {
		log.Fatalf("Invalid logging verbosity: %v", err)
	}

	logger = logrus.New()
	logger.SetFormatter(&logrus.JSONFormatter{})
	logger.SetLevel(level)
	logger.SetOutput(out)
}

// InjectLogger injects logger in the requests' context
func InjectLogger(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		loggerObj := FromContext(r.Context()).WithFields(logrus.Fields{
			"client-addr": r.RemoteAddr,
			"path":        r.URL.Path,
		})

		ctx := context.WithValue(r.Context(), contextKey, loggerObj)
		next(w, r.WithContext(ctx))
	}
}

// FromContext fetches the logger from the context otherwise it generates a new one
func FromContext(ctx context.Context) *logrus.Entry {
	if logger, ok := ctx.Value(contextKey).(*logrus.Entry); ok {
		return logger
	}
	return logger.WithContext(ctx)
}

// CloneToNewIfPresent assigns the current logger to the returning ctx (useful when you want a different
// deadline but want to preserve the logger)
func CloneToNewIfPresent(originCtx context.Context, newCtx context.Context) context.Context {
	if logger, ok := originCtx.Value(contextKey).(*logrus.Entry); ok {
		return context.WithValue(newCtx, contextKey, logger)
	}
	return newCtx
}

func ContextWithField(ctx context.Context, keyValues ...interface{}) context.Context {
	var logWithField logrus.FieldLogger = FromContext(ctx)
	if len(keyValues)%2 != 0 {
		logWithField.Fatalf("Expected to have key-value pairs in log statement, got: %v", keyValues)
	}

	for i := 0; i < len(keyValues); i += 2 {
		logWithField = logWithField.WithField(keyValues[i].(string), keyValues[i+1])
	}

	return context.WithValue(ctx, contextKey, logWithField)
}

// WithComponent tags every line logged through ctx with the owning subsystem
func WithComponent(ctx context.Context, component string) context.Context {
	return ContextWithField(ctx, "component", component)
}
