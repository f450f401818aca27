package telemetry

import (
	"github.com/uptrace/opentelemetry-go-extra/otelgorm"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// RegisterGormTracing hooks the otelgorm plugin into db so every query runs
// inside a span of the surrounding request. Query variables are excluded from
// the spans; batch ledgers carry prices and quantities that do not belong in
// a trace backend.
func RegisterGormTracing(db *gorm.DB, dbName string, logger *zap.Logger) error {
	plugin := otelgorm.NewPlugin(
		otelgorm.WithDBName(dbName),
		otelgorm.WithoutQueryVariables(),
	)
	if err := db.Use(plugin); err != nil {
		return err
	}
	if logger != nil {
		logger.Info("Database tracing enabled", zap.String("db_name", dbName))
	}
	return nil
}
