package storage

import (
	"bytes"
	"compress/zlib"
	"context"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/valkey-io/valkey-go"
	"github.com/valkey-io/valkey-go/valkeyotel"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/argus-sec/argus/internal/canonical"
	"github.com/argus-sec/argus/internal/config"
)

const keyPrefix = "argus"

// ValkeyDataPlane implements DataPlane using Valkey storage. Records are
// written under their content digest and registered in a per-index id set,
// so re-submitting a bundle is idempotent.
type ValkeyDataPlane struct {
	client            valkey.Client
	tracer            trace.Tracer
	logger            *slog.Logger
	enableCompression bool
}

// applyCommonValkeyConfig applies common settings to both Sentinel and
// standard client options.
func applyCommonValkeyConfig(clientOpts *valkey.ClientOption, cfg config.ValkeyConfig) {
	clientOpts.Username = cfg.Username
	clientOpts.Password = cfg.Password
	clientOpts.SelectDB = cfg.DB
}

// NewValkeyDataPlane creates a new ValkeyDataPlane instance with the provided
// configuration.
func NewValkeyDataPlane(cfg config.ValkeyConfig) (*ValkeyDataPlane, error) {
	logger := slog.Default().With("component", "valkey_data_plane")

	var clientOpts valkey.ClientOption

	if cfg.EnableSentinel {
		clientOpts = valkey.ClientOption{
			InitAddress: cfg.SentinelAddrs,
			Sentinel: valkey.SentinelOption{
				MasterSet: cfg.SentinelMaster,
				Username:  cfg.SentinelUsername,
				Password:  cfg.SentinelPassword,
			},
		}
		logger.Info("Configuring Valkey with Sentinel",
			"master", cfg.SentinelMaster,
			"sentinels", len(cfg.SentinelAddrs))
	} else {
		clientOpts = valkey.ClientOption{
			InitAddress: []string{cfg.Address},
		}
		logger.Info("Configuring Valkey with direct connection", "address", cfg.Address)
	}

	applyCommonValkeyConfig(&clientOpts, cfg)

	var (
		client valkey.Client
		err    error
	)

	if cfg.EnableOTel && config.AppConfig != nil && config.AppConfig.OTLP.EnableOTLP {
		client, err = valkeyotel.NewClient(clientOpts)
		if err != nil {
			return nil, fmt.Errorf("failed to create Valkey client with OpenTelemetry: %w", err)
		}

		logger.Info("Valkey client created with OpenTelemetry support")
	} else {
		client, err = valkey.NewClient(clientOpts)
		if err != nil {
			return nil, fmt.Errorf("failed to create Valkey client: %w", err)
		}

		logger.Info("Valkey client created without OpenTelemetry")
	}

	plane := &ValkeyDataPlane{
		client:            client,
		enableCompression: cfg.EnableCompression,
		logger:            logger,
		tracer:            otel.Tracer("valkey-data-plane"),
	}

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()

	if err := plane.Ping(ctx); err != nil {
		if closeErr := plane.Close(); closeErr != nil {
			logger.Error("failed to close Valkey client during cleanup", "error", closeErr)
		}

		return nil, fmt.Errorf("failed to connect to Valkey server: %w", err)
	}

	if cfg.EnableCompression {
		logger.Info("Valkey compression enabled")
	}

	return plane, nil
}

// compress compresses data using zlib if compression is enabled.
func (v *ValkeyDataPlane) compress(ctx context.Context, data []byte) ([]byte, error) {
	_, span := v.tracer.Start(ctx, "valkey.compress",
		trace.WithAttributes(
			attribute.Int("data.original.size.bytes", len(data)),
			attribute.Bool("compression.enabled", v.enableCompression),
		),
	)
	defer span.End()

	if !v.enableCompression {
		span.SetAttributes(attribute.String("compression.status", "disabled"))
		return data, nil
	}

	// Small payloads gain nothing from compression.
	const compressionThreshold = 100
	if len(data) < compressionThreshold {
		span.SetAttributes(attribute.String("compression.status", "skipped_small_data"))
		return data, nil
	}

	var buf bytes.Buffer

	writer := zlib.NewWriter(&buf)

	if _, err := writer.Write(data); err != nil {
		if closeErr := writer.Close(); closeErr != nil {
			span.RecordError(closeErr)
		}

		span.RecordError(err)

		return nil, fmt.Errorf("failed to write data: %w", err)
	}

	if err := writer.Close(); err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("failed to close compressor: %w", err)
	}

	compressed := buf.Bytes()

	if len(compressed) >= len(data) {
		span.SetAttributes(attribute.String("compression.status", "skipped_no_benefit"))
		return data, nil
	}

	span.SetAttributes(
		attribute.Int("data.compressed.size.bytes", len(compressed)),
		attribute.String("compression.status", "completed"),
	)

	return compressed, nil
}

// decompress decompresses data using zlib if compression is enabled.
func (v *ValkeyDataPlane) decompress(ctx context.Context, data []byte) ([]byte, error) {
	_, span := v.tracer.Start(ctx, "valkey.decompress",
		trace.WithAttributes(
			attribute.Int("data.compressed.size.bytes", len(data)),
			attribute.Bool("compression.enabled", v.enableCompression),
		),
	)
	defer span.End()

	if !v.enableCompression {
		span.SetAttributes(attribute.String("compression.status", "disabled"))
		return data, nil
	}

	// Data below the threshold or without benefit was stored uncompressed.
	reader, err := zlib.NewReader(bytes.NewReader(data))
	if err != nil {
		span.SetAttributes(attribute.String("compression.status", "not_compressed"))
		return data, nil
	}

	defer func() {
		if closeErr := reader.Close(); closeErr != nil {
			span.RecordError(closeErr)
			v.logger.Debug("Failed to close decompressor", "error", closeErr)
		}
	}()

	decompressed, err := io.ReadAll(reader)
	if err != nil {
		span.SetAttributes(attribute.String("compression.status", "decompression_failed"))
		v.logger.Debug("Failed to decompress data, returning original", "error", err)

		return data, nil
	}

	span.SetAttributes(
		attribute.Int("data.decompressed.size.bytes", len(decompressed)),
		attribute.String("compression.status", "completed"),
	)

	return decompressed, nil
}

func recordKey(index Index, digest string) string {
	return fmt.Sprintf("%s:rec:%s:%s", keyPrefix, index, digest)
}

func indexKey(index Index) string {
	return fmt.Sprintf("%s:idx:%s", keyPrefix, index)
}

// WriteRecords persists a batch of records into one index. Each record is
// stored in canonical form under its digest and the digest is added to the
// index id set.
func (v *ValkeyDataPlane) WriteRecords(ctx context.Context, index Index, records []Record) error {
	ctx, span := v.tracer.Start(ctx, "valkey.write_records",
		trace.WithAttributes(
			attribute.String("storage.index", string(index)),
			attribute.Int("storage.record.count", len(records)),
		),
	)
	defer span.End()

	if len(records) == 0 {
		return nil
	}

	commands := make(valkey.Commands, 0, 2*len(records))

	for _, record := range records {
		data, err := canonical.MarshalCanonical(record)
		if err != nil {
			span.RecordError(err)
			return fmt.Errorf("failed to marshal record for index %s: %w", index, err)
		}

		digest, err := canonical.Digest(record)
		if err != nil {
			span.RecordError(err)
			return fmt.Errorf("failed to digest record for index %s: %w", index, err)
		}

		compressed, err := v.compress(ctx, data)
		if err != nil {
			span.RecordError(err)
			return fmt.Errorf("failed to compress record: %w", err)
		}

		commands = append(commands,
			v.client.B().Set().
				Key(recordKey(index, digest)).
				Value(valkey.BinaryString(compressed)).
				Build(),
			v.client.B().Sadd().
				Key(indexKey(index)).
				Member(digest).
				Build(),
		)
	}

	for _, result := range v.client.DoMulti(ctx, commands...) {
		if err := result.Error(); err != nil {
			span.RecordError(err)
			return fmt.Errorf("%w: index %s: %w", ErrWriteFailed, index, err)
		}
	}

	span.SetAttributes(attribute.String("valkey.result", "success"))

	return nil
}

// CountRecords reports the cardinality of the index id set.
func (v *ValkeyDataPlane) CountRecords(ctx context.Context, index Index) (int64, error) {
	ctx, span := v.tracer.Start(ctx, "valkey.count_records",
		trace.WithAttributes(
			attribute.String("storage.index", string(index)),
		),
	)
	defer span.End()

	result := v.client.Do(ctx, v.client.B().Scard().Key(indexKey(index)).Build())
	if result.Error() != nil {
		span.RecordError(result.Error())
		return 0, result.Error()
	}

	count, err := result.ToInt64()
	if err != nil {
		span.RecordError(err)
		return 0, err
	}

	span.SetAttributes(attribute.Int64("storage.record.count", count))

	return count, nil
}

// ReadRecord fetches one stored record by digest.
func (v *ValkeyDataPlane) ReadRecord(ctx context.Context, index Index, digest string) ([]byte, error) {
	ctx, span := v.tracer.Start(ctx, "valkey.read_record",
		trace.WithAttributes(
			attribute.String("storage.index", string(index)),
			attribute.String("storage.record.digest", digest),
		),
	)
	defer span.End()

	result := v.client.Do(ctx, v.client.B().Get().Key(recordKey(index, digest)).Build())
	if result.Error() != nil {
		span.RecordError(result.Error())
		return nil, result.Error()
	}

	data, err := result.AsBytes()
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("failed to read record: %w", err)
	}

	return v.decompress(ctx, data)
}

// Ping checks the connection to the Valkey server.
func (v *ValkeyDataPlane) Ping(ctx context.Context) error {
	ctx, span := v.tracer.Start(ctx, "valkey.ping")
	defer span.End()

	if err := v.client.Do(ctx, v.client.B().Ping().Build()).Error(); err != nil {
		span.RecordError(err)
		return err
	}

	span.SetAttributes(attribute.String("valkey.result", "success"))

	return nil
}

// Close closes the Valkey client connection.
func (v *ValkeyDataPlane) Close() error {
	v.client.Close()
	return nil
}
