package analytics

import (
	"os"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

type DataCollectorConfig struct {
	FileName string
}

// DataCollector records per-node run outcomes for offline analysis.
type DataCollector interface {
	RecordNodeSuccess(flowId int64, flowInstanceId string, nodeId string, nodeType string, data any)
	RecordNodeFailure(flowId int64, flowInstanceId string, nodeId string, nodeType string, reason string)
	RecordRunFinished(flowId int64, flowInstanceId string, conversationId string, promptTokens int, completionTokens int)
}

type LogFileDataCollector struct {
	fileName string
	logger   *zap.Logger
}

var _ DataCollector = new(LogFileDataCollector)

func NewLogFileDataCollector(conf DataCollectorConfig) (*LogFileDataCollector, error) {
	enccoderConfig := zap.NewProductionEncoderConfig()
	enccoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	enccoderConfig.StacktraceKey = "" // to hide stacktrace info
	fileEncoder := zapcore.NewJSONEncoder(enccoderConfig)
	logFile, err := os.OpenFile(conf.FileName, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return nil, err
	}
	writer := zapcore.AddSync(logFile)
	defaultLogLevel := zapcore.InfoLevel
	core := zapcore.NewTee(zapcore.NewCore(fileEncoder, writer, defaultLogLevel))
	logger := zap.New(core, zap.AddCaller(), zap.AddStacktrace(zapcore.ErrorLevel))
	return &LogFileDataCollector{
		fileName: conf.FileName,
		logger:   logger,
	}, nil
}

func (lc *LogFileDataCollector) RecordNodeSuccess(flowId int64, flowInstanceId string, nodeId string, nodeType string, data any) {
	lc.logger.Info("success", zap.Int64("flowId", flowId), zap.String("flowInstanceId", flowInstanceId), zap.String("nodeId", nodeId), zap.String("nodeType", nodeType), zap.Any("data", data))
}

func (lc *LogFileDataCollector) RecordNodeFailure(flowId int64, flowInstanceId string, nodeId string, nodeType string, reason string) {
	lc.logger.Info("failure", zap.Int64("flowId", flowId), zap.String("flowInstanceId", flowInstanceId), zap.String("nodeId", nodeId), zap.String("nodeType", nodeType), zap.String("reason", reason))
}

func (lc *LogFileDataCollector) RecordRunFinished(flowId int64, flowInstanceId string, conversationId string, promptTokens int, completionTokens int) {
	lc.logger.Info("finished", zap.Int64("flowId", flowId), zap.String("flowInstanceId", flowInstanceId), zap.String("conversationId", conversationId), zap.Int("promptTokens", promptTokens), zap.Int("completionTokens", completionTokens))
}
