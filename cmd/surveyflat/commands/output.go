package commands

import (
	"context"
	"errors"
	"log/slog"
	"surveyflat/lib/flatten"
	"surveyflat/lib/tableio"
)

// writeOutput renders t to --out in --format.
func writeOutput(ctx context.Context, cfg Config, t *flatten.Table) error {
	format, err := tableio.ParseFormat(formatName)
	if err != nil {
		return err
	}
	t.Drop(dropColumns...)

	sink, err := tableio.OpenSink(ctx, outTarget, tableio.SinkOptions{
		S3:          cfg.S3,
		ContentType: format.ContentType(),
	})
	if err != nil {
		return err
	}
	err = tableio.Render(sink, t, format)
	closeErr := sink.Close()
	if err != nil || closeErr != nil {
		return errors.Join(err, closeErr)
	}

	if outTarget != "" && outTarget != "-" {
		slog.InfoContext(ctx, "wrote table", "target", outTarget, "rows", t.Len(), "columns", len(t.Columns()))
	}
	return nil
}
