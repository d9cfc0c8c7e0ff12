// Package writer archives the raw end-of-day snapshots as parquet files,
// either to S3 or to a local directory when S3 is disabled. Files are built
// fully in memory and partitioned by symbol and trading date.
package writer

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/xitongsys/parquet-go/parquet"
	"github.com/xitongsys/parquet-go/source"
	parquetwriter "github.com/xitongsys/parquet-go/writer"

	appconfig "optionflow/config"
	"optionflow/logger"
	"optionflow/models"
)

const archiveDataType = "raw_snapshots"

// ParquetRecord is one option leg observation in the archived file.
type ParquetRecord struct {
	Symbol       string  `parquet:"name=symbol, type=BYTE_ARRAY, convertedtype=UTF8"`
	Timestamp    int64   `parquet:"name=timestamp, type=INT64"`
	Strike       float64 `parquet:"name=strike, type=DOUBLE"`
	OptionType   string  `parquet:"name=option_type, type=BYTE_ARRAY, convertedtype=UTF8"`
	OpenInterest int64   `parquet:"name=open_interest, type=INT64"`
	OIChange     int64   `parquet:"name=oi_change, type=INT64"`
	LastPrice    float64 `parquet:"name=last_price, type=DOUBLE"`
	Volume       int64   `parquet:"name=volume, type=INT64"`
	SpotPrice    float64 `parquet:"name=spot_price, type=DOUBLE"`
	DataSource   string  `parquet:"name=data_source, type=BYTE_ARRAY, convertedtype=UTF8"`
}

// memoryFileWriter implements the ParquetFile interface for in-memory writing.
type memoryFileWriter struct {
	buffer *bytes.Buffer
}

func newMemoryFileWriter() *memoryFileWriter {
	return &memoryFileWriter{buffer: &bytes.Buffer{}}
}

func (mfw *memoryFileWriter) Create(string) (source.ParquetFile, error) { return mfw, nil }
func (mfw *memoryFileWriter) Open(string) (source.ParquetFile, error)   { return mfw, nil }
func (mfw *memoryFileWriter) Seek(int64, int) (int64, error)            { return int64(mfw.buffer.Len()), nil }
func (mfw *memoryFileWriter) Read(b []byte) (int, error)                { return mfw.buffer.Read(b) }
func (mfw *memoryFileWriter) Write(b []byte) (int, error)               { return mfw.buffer.Write(b) }
func (mfw *memoryFileWriter) Close() error                              { return nil }
func (mfw *memoryFileWriter) Bytes() []byte                             { return mfw.buffer.Bytes() }

type Archiver struct {
	cfg      appconfig.S3Config
	s3Client *s3.Client
	log      *logger.Log
}

func NewArchiver(ctx context.Context, cfg appconfig.S3Config) (*Archiver, error) {
	a := &Archiver{cfg: cfg, log: logger.GetLogger()}
	if !cfg.Enabled {
		if cfg.LocalDir == "" {
			return nil, fmt.Errorf("archive needs either s3 enabled or a local directory")
		}
		a.log.WithComponent("archiver").WithFields(logger.Fields{
			"local_dir": cfg.LocalDir,
		}).Info("archiver initialized in local mode")
		return a, nil
	}

	loadOpts := []func(*awsconfig.LoadOptions) error{
		awsconfig.WithRegion(cfg.Region),
	}
	if cfg.AccessKeyID != "" && cfg.SecretAccessKey != "" {
		loadOpts = append(loadOpts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		))
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, fmt.Errorf("load aws configuration: %w", err)
	}
	a.s3Client = s3.NewFromConfig(awsCfg)

	a.log.WithComponent("archiver").WithFields(logger.Fields{
		"bucket": cfg.Bucket,
		"region": cfg.Region,
	}).Info("archiver initialized")
	return a, nil
}

// ArchiveSnapshots writes every leg of the day's snapshots into one parquet
// file and returns the archive record describing where it landed. Re-running
// for the same (symbol, day) overwrites the same object.
func (a *Archiver) ArchiveSnapshots(ctx context.Context, symbol string, day time.Time, snaps []*models.MarketSnapshot) (models.RawArchiveRecord, error) {
	log := a.log.WithComponent("archiver").WithFields(logger.Fields{
		"symbol": symbol,
		"date":   day.Format("2006-01-02"),
	})

	if len(snaps) == 0 {
		return models.RawArchiveRecord{}, fmt.Errorf("no snapshots to archive for %s", symbol)
	}

	data, count, err := a.buildParquet(snaps)
	if err != nil {
		return models.RawArchiveRecord{}, err
	}

	sum := sha256.Sum256(data)
	rec := models.RawArchiveRecord{
		Date:        day,
		Symbol:      symbol,
		DataType:    archiveDataType,
		ByteSize:    int64(len(data)),
		RecordCount: count,
		Checksum:    hex.EncodeToString(sum[:]),
	}

	key := a.objectKey(symbol, day)
	if a.s3Client != nil {
		if err := a.upload(ctx, key, data); err != nil {
			return models.RawArchiveRecord{}, err
		}
		rec.Location = fmt.Sprintf("s3://%s/%s", a.cfg.Bucket, key)
	} else {
		path := filepath.Join(a.cfg.LocalDir, filepath.FromSlash(key))
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return models.RawArchiveRecord{}, fmt.Errorf("create archive directory: %w", err)
		}
		if err := os.WriteFile(path, data, 0o644); err != nil {
			return models.RawArchiveRecord{}, fmt.Errorf("write archive file: %w", err)
		}
		rec.Location = path
	}

	logger.IncrementArchiveWritten(int64(len(data)))
	log.WithFields(logger.Fields{
		"location":     rec.Location,
		"byte_size":    rec.ByteSize,
		"record_count": rec.RecordCount,
	}).Info("raw snapshots archived")
	return rec, nil
}

func (a *Archiver) objectKey(symbol string, day time.Time) string {
	key := fmt.Sprintf("symbol=%s/date=%s/%s_%s_%s.parquet",
		symbol, day.Format("2006-01-02"), symbol, archiveDataType, day.Format("20060102"))
	if a.cfg.Prefix != "" {
		key = a.cfg.Prefix + "/" + key
	}
	return key
}

func (a *Archiver) buildParquet(snaps []*models.MarketSnapshot) ([]byte, int, error) {
	fw := newMemoryFileWriter()
	pw, err := parquetwriter.NewParquetWriter(fw, new(ParquetRecord), 4)
	if err != nil {
		return nil, 0, fmt.Errorf("create parquet writer: %w", err)
	}
	pw.CompressionType = parquet.CompressionCodec_SNAPPY

	count := 0
	for _, snap := range snaps {
		if snap == nil {
			continue
		}
		for _, s := range snap.Chain {
			for _, side := range []struct {
				optionType models.OptionType
				leg        models.OptionLeg
			}{
				{models.OptionCall, s.Call},
				{models.OptionPut, s.Put},
			} {
				record := ParquetRecord{
					Symbol:       snap.Symbol,
					Timestamp:    snap.Timestamp.UnixMilli(),
					Strike:       s.Strike,
					OptionType:   string(side.optionType),
					OpenInterest: side.leg.OpenInterest,
					OIChange:     side.leg.OIChange,
					LastPrice:    side.leg.LastPrice,
					Volume:       side.leg.Volume,
					SpotPrice:    snap.CurrentPrice,
					DataSource:   snap.DataSource,
				}
				if err := pw.Write(record); err != nil {
					pw.WriteStop()
					return nil, 0, fmt.Errorf("write parquet record: %w", err)
				}
				count++
			}
		}
	}

	if err := pw.WriteStop(); err != nil {
		return nil, 0, fmt.Errorf("finalize parquet file: %w", err)
	}
	return fw.Bytes(), count, nil
}

func (a *Archiver) upload(ctx context.Context, key string, data []byte) error {
	input := &s3.PutObjectInput{
		Bucket:      aws.String(a.cfg.Bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(data),
		ContentType: aws.String("application/octet-stream"),
	}
	if _, err := a.s3Client.PutObject(context.WithoutCancel(ctx), input); err != nil {
		return fmt.Errorf("upload to s3 bucket %s: %w", a.cfg.Bucket, err)
	}
	return nil
}
