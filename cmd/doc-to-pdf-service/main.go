// This file orchestrates the doc-to-pdf service, initializing and running the
// NATS worker that converts uploaded documents to PDF.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"

	"github.com/book-expert/configurator"
	"github.com/book-expert/events"
	"github.com/book-expert/logger"

	"github.com/book-expert/doc-to-pdf-service/internal/convert"
)

// Config represents the overall configuration structure for the
// doc-to-pdf-service.
type Config struct {
	NATS       NATSConfig       `toml:"nats"`
	Paths      PathsConfig      `toml:"paths"`
	Conversion ConversionConfig `toml:"conversion"`
}

// PathsConfig holds common path configurations.
type PathsConfig struct {
	BaseLogsDir string `toml:"base_logs_dir"`
}

// NATSConfig holds NATS-specific configuration for the doc-to-pdf-service.
type NATSConfig struct {
	URL                  string `toml:"url"`
	DocStreamName        string `toml:"doc_stream_name"`
	DocConsumerName      string `toml:"doc_consumer_name"`
	DocUploadedSubject   string `toml:"doc_uploaded_subject"`
	DocObjectStoreBucket string `toml:"doc_object_store_bucket"`
	PDFStreamName        string `toml:"pdf_stream_name"`
	PDFCreatedSubject    string `toml:"pdf_created_subject"`
	PDFObjectStoreBucket string `toml:"pdf_object_store_bucket"`
}

// ConversionConfig holds the conversion policy the worker applies per job.
type ConversionConfig struct {
	TimeoutSeconds int      `toml:"timeout_seconds"`
	ProcessNames   []string `toml:"process_names"`
}

// documentUploadedEvent announces a new editable document in the object
// store. Defined locally until the shared events module grows an equivalent.
type documentUploadedEvent struct {
	Header      events.EventHeader `json:"header"`
	DocumentKey string             `json:"document_key"`
}

// job represents the context for processing a single message.
type job struct {
	msg           jetstream.Msg
	jetStream     jetstream.JetStream
	docStore      jetstream.ObjectStore
	pdfStore      jetstream.ObjectStore
	cfg           *Config
	appLogger     *logger.Logger
	converter     *convert.Converter
	event         *documentUploadedEvent
	header        *events.EventHeader
	workDir       string
	localDocPath  string
}

const natsFetchTimeout = 5 * time.Second

const ackWait = 30 * time.Second

var configURL = os.Getenv("DOC_TO_PDF_CONFIG_URL")

// main is the entry point of the application.
func main() {
	ctx, stop := signal.NotifyContext(
		context.Background(),
		syscall.SIGINT,
		syscall.SIGTERM,
	)
	defer stop()

	runErr := run(ctx)
	if runErr != nil {
		log.Printf("Fatal application error: %v", runErr)
		os.Exit(1)
	}

	log.Println("Application shut down gracefully.")
}

// run initializes all components and starts the message processing loop.
func run(ctx context.Context) error {
	cfg, appLogger, setupErr := setupConfigAndLogger()
	if setupErr != nil {
		return setupErr
	}
	defer func() {
		if closeErr := appLogger.Close(); closeErr != nil {
			log.Printf("Warning: failed to close app logger: %v", closeErr)
		}
	}()

	converter := convert.NewConverter(&convert.Options{
		ProgressBarOutput: io.Discard,
		ProcessNames:      cfg.Conversion.ProcessNames,
		JobSettle:         0,
		ReapSettle:        0,
	}, appLogger)

	// The external application is a fatal, non-retryable precondition;
	// refuse to start consuming jobs without it.
	probeErr := converter.Probe(ctx)
	if probeErr != nil {
		return probeErr
	}

	natsConnection, connErr := nats.Connect(cfg.NATS.URL)
	if connErr != nil {
		return fmt.Errorf("failed to connect to NATS: %w", connErr)
	}
	defer natsConnection.Close()
	appLogger.Info("Connected to NATS server at %s", natsConnection.ConnectedUrl())

	jetStream, jsErr := jetstream.New(natsConnection)
	if jsErr != nil {
		return fmt.Errorf("failed to create JetStream context: %w", jsErr)
	}

	jsSetupErr := setupJetStream(ctx, jetStream, cfg)
	if jsSetupErr != nil {
		return fmt.Errorf("failed to set up JetStream resources: %w", jsSetupErr)
	}

	consumer, consumerErr := jetStream.Consumer(
		ctx,
		cfg.NATS.DocStreamName,
		cfg.NATS.DocConsumerName,
	)
	if consumerErr != nil {
		return fmt.Errorf("failed to get consumer: %w", consumerErr)
	}

	appLogger.Info(
		"Worker is running, listening for jobs on '%s'...",
		cfg.NATS.DocUploadedSubject,
	)

	return processMessages(ctx, consumer, jetStream, cfg, appLogger, converter)
}

// setupConfigAndLogger loads configuration and sets up the main application
// logger.
func setupConfigAndLogger() (*Config, *logger.Logger, error) {
	if configURL == "" {
		return nil, nil, errors.New("DOC_TO_PDF_CONFIG_URL is not set")
	}

	var cfg Config
	tempLogger, tempLoggerErr := logger.New(os.TempDir(), "doc-to-pdf-bootstrap.log")
	if tempLoggerErr != nil {
		return nil, nil, fmt.Errorf(
			"failed to create bootstrap logger: %w",
			tempLoggerErr,
		)
	}
	defer func() {
		if closeErr := tempLogger.Close(); closeErr != nil {
			log.Printf("Warning: failed to close temp logger: %v", closeErr)
		}
	}()

	loadErr := configurator.LoadFromURL(configURL, &cfg, tempLogger)
	if loadErr != nil {
		return nil, nil, fmt.Errorf(
			"failed to load configuration from URL %s: %w",
			configURL,
			loadErr,
		)
	}
	log.Printf("Configuration loaded from %s", configURL)

	appLogger, loggerErr := logger.New(cfg.Paths.BaseLogsDir, "doc-to-pdf-service.log")
	if loggerErr != nil {
		return nil, nil, fmt.Errorf("failed to initialize logger: %w", loggerErr)
	}

	return &cfg, appLogger, nil
}

// setupJetStream ensures all required NATS streams and object stores exist.
func setupJetStream(ctx context.Context, jetStream jetstream.JetStream, cfg *Config) error {
	streamCfg := newStreamConfig(cfg.NATS.DocStreamName, cfg.NATS.DocUploadedSubject)
	_, streamErr := jetStream.CreateStream(ctx, *streamCfg)
	if streamErr != nil && !errors.Is(streamErr, jetstream.ErrStreamNameAlreadyInUse) {
		return fmt.Errorf("failed to create document stream: %w", streamErr)
	}

	consumerCfg := newConsumerConfig(cfg)
	stream, streamErr := jetStream.Stream(ctx, cfg.NATS.DocStreamName)
	if streamErr != nil {
		return fmt.Errorf("failed to get document stream handle: %w", streamErr)
	}
	_, consumerErr := stream.CreateOrUpdateConsumer(ctx, *consumerCfg)
	if consumerErr != nil {
		return fmt.Errorf("failed to create document consumer: %w", consumerErr)
	}

	pdfStreamCfg := newStreamConfig(cfg.NATS.PDFStreamName, cfg.NATS.PDFCreatedSubject)
	_, pdfStreamErr := jetStream.CreateStream(ctx, *pdfStreamCfg)
	if pdfStreamErr != nil && !errors.Is(pdfStreamErr, jetstream.ErrStreamNameAlreadyInUse) {
		return fmt.Errorf("failed to create PDF stream: %w", pdfStreamErr)
	}

	for _, bucket := range []string{cfg.NATS.DocObjectStoreBucket, cfg.NATS.PDFObjectStoreBucket} {
		objStoreCfg := newObjectStoreConfig(bucket)
		_, objStoreErr := jetStream.CreateObjectStore(ctx, *objStoreCfg)
		if objStoreErr != nil && !errors.Is(objStoreErr, jetstream.ErrBucketExists) {
			return fmt.Errorf("failed to create object store '%s': %w", bucket, objStoreErr)
		}
	}
	return nil
}

func newStreamConfig(name, subject string) *jetstream.StreamConfig {
	return &jetstream.StreamConfig{
		Name:                   name,
		Description:            "",
		Subjects:               []string{subject},
		Retention:              jetstream.WorkQueuePolicy,
		MaxConsumers:           -1,
		MaxMsgs:                -1,
		MaxBytes:               -1,
		Discard:                jetstream.DiscardOld,
		DiscardNewPerSubject:   false,
		MaxAge:                 0,
		MaxMsgsPerSubject:      -1,
		MaxMsgSize:             -1,
		Storage:                jetstream.FileStorage,
		Replicas:               1,
		NoAck:                  false,
		Duplicates:             0,
		Placement:              nil,
		Mirror:                 nil,
		Sources:                nil,
		Sealed:                 false,
		DenyDelete:             false,
		DenyPurge:              false,
		AllowRollup:            false,
		Compression:            jetstream.NoCompression,
		FirstSeq:               0,
		SubjectTransform:       nil,
		RePublish:              nil,
		AllowDirect:            false,
		MirrorDirect:           false,
		ConsumerLimits:         jetstream.StreamConsumerLimits{},
		Metadata:               nil,
		Template:               "",
		AllowMsgTTL:            false,
		SubjectDeleteMarkerTTL: 0,
	}
}

func newConsumerConfig(cfg *Config) *jetstream.ConsumerConfig {
	return &jetstream.ConsumerConfig{
		Durable:            cfg.NATS.DocConsumerName,
		Name:               "",
		Description:        "",
		FilterSubject:      cfg.NATS.DocUploadedSubject,
		AckPolicy:          jetstream.AckExplicitPolicy,
		AckWait:            ackWait,
		MaxDeliver:         -1,
		DeliverPolicy:      jetstream.DeliverAllPolicy,
		OptStartSeq:        0,
		OptStartTime:       nil,
		BackOff:            nil,
		ReplayPolicy:       jetstream.ReplayInstantPolicy,
		RateLimit:          0,
		SampleFrequency:    "",
		MaxWaiting:         0,
		MaxAckPending:      -1,
		HeadersOnly:        false,
		MaxRequestBatch:    0,
		MaxRequestExpires:  0,
		MaxRequestMaxBytes: 0,
		InactiveThreshold:  0,
		Replicas:           0,
		MemoryStorage:      false,
		FilterSubjects:     nil,
		Metadata:           nil,
		PauseUntil:         nil,
		PriorityPolicy:     0,
		PinnedTTL:          0,
		PriorityGroups:     nil,
		DeliverSubject:     "",
		DeliverGroup:       "",
		FlowControl:        false,
		IdleHeartbeat:      0,
	}
}

func newObjectStoreConfig(bucket string) *jetstream.ObjectStoreConfig {
	return &jetstream.ObjectStoreConfig{
		Bucket:      bucket,
		Description: "",
		TTL:         0,
		MaxBytes:    -1,
		Storage:     jetstream.FileStorage,
		Replicas:    1,
		Placement:   nil,
		Compression: false,
		Metadata:    nil,
	}
}

// processMessages implements the core worker loop.
func processMessages(
	ctx context.Context,
	consumer jetstream.Consumer,
	jetStream jetstream.JetStream,
	cfg *Config,
	appLogger *logger.Logger,
	converter *convert.Converter,
) error {
	docStore, docStoreErr := jetStream.ObjectStore(ctx, cfg.NATS.DocObjectStoreBucket)
	if docStoreErr != nil {
		return fmt.Errorf("failed to bind to document object store: %w", docStoreErr)
	}
	pdfStore, pdfStoreErr := jetStream.ObjectStore(ctx, cfg.NATS.PDFObjectStoreBucket)
	if pdfStoreErr != nil {
		return fmt.Errorf("failed to bind to PDF object store: %w", pdfStoreErr)
	}

	for {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return fmt.Errorf("context error in message loop: %w", ctxErr)
		}
		batch, fetchErr := consumer.Fetch(1, jetstream.FetchMaxWait(natsFetchTimeout))
		if fetchErr != nil {
			if errors.Is(fetchErr, context.Canceled) || errors.Is(fetchErr, nats.ErrTimeout) {
				continue
			}
			appLogger.Error("Error fetching messages: %v", fetchErr)
			continue
		}
		for msg := range batch.Messages() {
			handleMessage(ctx, msg, jetStream, docStore, pdfStore, cfg, appLogger, converter)
		}
		if batchErr := batch.Error(); batchErr != nil {
			appLogger.Error("Error during message batch processing: %v", batchErr)
		}
	}
}

// handleMessage processes a single message.
func handleMessage(
	ctx context.Context, msg jetstream.Msg, jetStream jetstream.JetStream,
	docStore, pdfStore jetstream.ObjectStore, cfg *Config, appLogger *logger.Logger,
	converter *convert.Converter,
) {
	job, jobErr := newJob(msg, jetStream, docStore, pdfStore, cfg, appLogger, converter)
	if jobErr != nil {
		appLogger.Error("Failed to create job: %v", jobErr)
		return
	}
	job.run(ctx)
}

// newJob creates a new job handler.
func newJob(
	msg jetstream.Msg, jetStream jetstream.JetStream, docStore, pdfStore jetstream.ObjectStore,
	cfg *Config, appLogger *logger.Logger, converter *convert.Converter,
) (*job, error) {
	event, unmarshalErr := unmarshalEvent(msg)
	if unmarshalErr != nil {
		return nil, unmarshalErr
	}
	return &job{
		msg:          msg,
		jetStream:    jetStream,
		docStore:     docStore,
		pdfStore:     pdfStore,
		cfg:          cfg,
		appLogger:    appLogger,
		converter:    converter,
		event:        event,
		header:       &event.Header,
		workDir:      "", // Will be set by setupWorkDir
		localDocPath: "", // Will be set by setupWorkDir
	}, nil
}

// unmarshalEvent unmarshals the documentUploadedEvent from a message.
func unmarshalEvent(msg jetstream.Msg) (*documentUploadedEvent, error) {
	var event documentUploadedEvent
	if err := json.Unmarshal(msg.Data(), &event); err != nil {
		return nil, fmt.Errorf("failed to unmarshal documentUploadedEvent: %w", err)
	}
	return &event, nil
}

// run executes the full lifecycle of a job.
func (j *job) run(ctx context.Context) {
	j.appLogger.Info(
		"Received job for WorkflowID [%s]: converting document key '%s'",
		j.header.WorkflowID,
		j.event.DocumentKey,
	)
	if progErr := j.msg.InProgress(); progErr != nil {
		j.appLogger.Warn("Failed to send InProgress update: %v", progErr)
	}

	dirErr := j.setupWorkDir()
	if dirErr != nil {
		j.appLogger.Error(
			"Error setting up work directory for job [%s]: %v",
			j.header.WorkflowID,
			dirErr,
		)
		j.nak(dirErr)
		return
	}
	defer j.cleanupWorkDir()

	if downloadErr := j.downloadDocument(ctx); downloadErr != nil {
		j.appLogger.Error(
			"Error downloading document for job [%s]: %v",
			j.header.WorkflowID,
			downloadErr,
		)
		j.term(downloadErr)
		return
	}

	pdfPath, outcome := j.convertDocument(ctx)
	if !outcome.Succeeded {
		j.appLogger.Error(
			"Conversion failed for job [%s]: %s",
			j.header.WorkflowID,
			outcome.Message,
		)
		// A timed-out or rejected document will not convert better on
		// redelivery; terminate instead of requeueing.
		j.term(errors.New(outcome.Message))
		return
	}

	if publishErr := j.publishPDF(ctx, pdfPath); publishErr != nil {
		j.appLogger.Error(
			"Error publishing PDF for job [%s]: %v",
			j.header.WorkflowID,
			publishErr,
		)
		j.nak(publishErr)
		return
	}

	j.ack()
}

func (j *job) setupWorkDir() error {
	workDir, err := os.MkdirTemp("", fmt.Sprintf("doc-%s-", j.header.WorkflowID))
	if err != nil {
		return fmt.Errorf("failed to create temp dir: %w", err)
	}
	j.workDir = workDir
	j.localDocPath = filepath.Join(workDir, j.event.DocumentKey)
	return nil
}

func (j *job) cleanupWorkDir() {
	if err := os.RemoveAll(j.workDir); err != nil {
		j.appLogger.Warn("Failed to remove temp directory '%s': %v", j.workDir, err)
	}
}

func (j *job) downloadDocument(ctx context.Context) error {
	err := j.docStore.GetFile(ctx, j.event.DocumentKey, j.localDocPath)
	if err != nil {
		return fmt.Errorf(
			"failed to get document '%s' from object store: %w",
			j.event.DocumentKey,
			err,
		)
	}
	return nil
}

// convertDocument runs the document through the converter and returns the
// local path of the produced PDF alongside the conversion outcome.
func (j *job) convertDocument(ctx context.Context) (string, convert.Outcome) {
	pdfPath := convert.DefaultDestPath(j.localDocPath, j.workDir)

	outcome := j.converter.ConvertFile(ctx, convert.Job{
		SourcePath:     j.localDocPath,
		DestPath:       pdfPath,
		TimeoutSeconds: j.cfg.Conversion.TimeoutSeconds,
	})

	return pdfPath, outcome
}

// publishPDF uploads the converted PDF to the object store and publishes a
// PDFCreatedEvent for downstream services.
func (j *job) publishPDF(ctx context.Context, pdfPath string) error {
	objectName := fmt.Sprintf(
		"%s/%s/%s",
		j.header.TenantID,
		j.header.WorkflowID,
		filepath.Base(pdfPath),
	)

	if uploadErr := uploadFileToObjectStore(ctx, j.pdfStore, objectName, pdfPath); uploadErr != nil {
		return fmt.Errorf("failed to upload '%s': %w", objectName, uploadErr)
	}
	j.appLogger.Info("Job [%s]: Uploaded '%s'", j.header.WorkflowID, objectName)

	pdfEvent := events.PDFCreatedEvent{
		Header: events.EventHeader{
			WorkflowID: j.header.WorkflowID,
			UserID:     j.header.UserID,
			TenantID:   j.header.TenantID,
			EventID:    uuid.New().String(),
			Timestamp:  time.Now(),
		},
		PDFKey: objectName,
	}
	eventJSON, marshalErr := json.Marshal(pdfEvent)
	if marshalErr != nil {
		return fmt.Errorf("failed to marshal PDFCreatedEvent: %w", marshalErr)
	}
	_, pubErr := j.jetStream.Publish(ctx, j.cfg.NATS.PDFCreatedSubject, eventJSON)
	if pubErr != nil {
		return fmt.Errorf("failed to publish PDFCreatedEvent: %w", pubErr)
	}
	return nil
}

func (j *job) ack() {
	if err := j.msg.Ack(); err != nil {
		j.appLogger.Error("Job [%s]: Failed to acknowledge message: %v", j.header.WorkflowID, err)
	} else {
		j.appLogger.Success("Job [%s]: Processing complete. Acknowledged.", j.header.WorkflowID)
	}
}

func (j *job) nak(reason error) {
	j.appLogger.Error("NAK'ing message for job [%s]: %v", j.header.WorkflowID, reason)
	if err := j.msg.Nak(); err != nil {
		j.appLogger.Error("Failed to NAK message: %v", err)
	}
}

func (j *job) term(reason error) {
	j.appLogger.Error("Terminating message for job [%s]: %v", j.header.WorkflowID, reason)
	if err := j.msg.Term(); err != nil {
		j.appLogger.Error("Failed to TERM message: %v", err)
	}
}

func uploadFileToObjectStore(
	ctx context.Context,
	store jetstream.ObjectStore,
	objectName, filePath string,
) error {
	file, openErr := os.Open(filePath)
	if openErr != nil {
		return fmt.Errorf("failed to open file for upload: %w", openErr)
	}
	defer func() {
		if closeErr := file.Close(); closeErr != nil {
			log.Printf("Warning: failed to close file '%s': %v", filePath, closeErr)
		}
	}()

	meta := jetstream.ObjectMeta{
		Name:        objectName,
		Description: "",
		Headers:     nil,
		Metadata:    nil,
	}
	_, putErr := store.Put(ctx, meta, file)
	if putErr != nil {
		return fmt.Errorf("failed to put file in object store: %w", putErr)
	}
	return nil
}
