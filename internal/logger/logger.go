// Package logger는 구조화된 로깅을 제공합니다.
// 기본 출력은 JSON이며, 로그에 기록되는 URL의 민감한 쿼리 값과 토큰은 마스킹됩니다.
package logger

import (
	"io"
	"os"
	"regexp"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/insajin/lazyscroll/internal/config"
)

// 민감 정보 패턴
var sensitivePatterns = []*regexp.Regexp{
	// URL 쿼리 파라미터 (?token=..., &sig=... 등)
	regexp.MustCompile(`([?&](?:access_token|token|key|api_key|sig|signature|session|sid|auth|password)=)([^&\s"]+)`),
	// Bearer 토큰
	regexp.MustCompile(`(Bearer\s+)([a-zA-Z0-9\-_\.]+)`),
	// 쿠키 헤더 값
	regexp.MustCompile(`((?i:cookie)\s*[=:]\s*)([^\s",]{10,})`),
}

// maskedWriter는 민감 정보를 마스킹하는 io.Writer입니다.
type maskedWriter struct {
	underlying io.Writer
}

// Write는 민감 정보를 마스킹한 후 기록합니다.
// 호출자에게는 원본 길이를 반환해야 zerolog가 short write로 취급하지 않습니다.
func (w *maskedWriter) Write(p []byte) (int, error) {
	masked := MaskSensitive(string(p))
	if _, err := w.underlying.Write([]byte(masked)); err != nil {
		return 0, err
	}
	return len(p), nil
}

// Setup은 로거를 초기화합니다.
func Setup(cfg config.LoggingConfig) {
	zerolog.SetGlobalLevel(parseLevel(cfg.Level))
	zerolog.TimeFieldFormat = time.RFC3339

	// 출력 대상 설정
	var output io.Writer = os.Stdout
	if cfg.File != "" {
		file, err := os.OpenFile(cfg.File, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0600)
		if err != nil {
			// 파일 열기 실패 시 stdout 사용
			log.Warn().Err(err).Str("file", cfg.File).Msg("로그 파일을 열 수 없어 stdout을 사용합니다")
		} else {
			output = file
		}
	}

	log.Logger = New(output, cfg.Format)
}

// New는 out에 기록하는 마스킹 로거를 생성합니다. format이 "text"이면 콘솔 포맷을 사용합니다.
func New(out io.Writer, format string) zerolog.Logger {
	masked := &maskedWriter{underlying: out}

	if format == "text" {
		// 콘솔 포맷 (개발 시 가독성)
		consoleWriter := zerolog.ConsoleWriter{
			Out:        masked,
			TimeFormat: time.RFC3339,
		}
		return zerolog.New(consoleWriter).With().Timestamp().Logger()
	}
	return zerolog.New(masked).With().Timestamp().Logger()
}

// parseLevel은 문자열 레벨을 zerolog.Level로 변환합니다.
func parseLevel(level string) zerolog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return zerolog.DebugLevel
	case "info":
		return zerolog.InfoLevel
	case "warn", "warning":
		return zerolog.WarnLevel
	case "error":
		return zerolog.ErrorLevel
	default:
		return zerolog.InfoLevel
	}
}

// MaskSensitive는 문자열에서 민감 정보를 마스킹합니다.
// 각 패턴의 첫 번째 그룹(키 부분)은 유지하고 값만 마스킹합니다.
func MaskSensitive(input string) string {
	result := input
	for _, pattern := range sensitivePatterns {
		result = pattern.ReplaceAllStringFunc(result, func(match string) string {
			groups := pattern.FindStringSubmatch(match)
			if len(groups) < 3 {
				return maskValue(match)
			}
			return groups[1] + maskValue(groups[2])
		})
	}
	return result
}

// maskValue는 값을 마스킹합니다.
// 앞 4자와 뒤 4자만 남기고 나머지는 ***로 대체합니다.
func maskValue(value string) string {
	value = strings.TrimSpace(value)
	if len(value) <= 8 {
		return "***"
	}
	return value[:4] + "***" + value[len(value)-4:]
}

// Debug는 디버그 레벨 로그를 기록합니다.
func Debug() *zerolog.Event {
	return log.Debug()
}

// Info는 정보 레벨 로그를 기록합니다.
func Info() *zerolog.Event {
	return log.Info()
}

// Warn은 경고 레벨 로그를 기록합니다.
func Warn() *zerolog.Event {
	return log.Warn()
}

// Error는 오류 레벨 로그를 기록합니다.
func Error() *zerolog.Event {
	return log.Error()
}

// WithRunID는 실행 ID를 컨텍스트에 추가한 로거를 반환합니다.
func WithRunID(runID string) zerolog.Logger {
	return log.With().Str("run_id", runID).Logger()
}

// Redirect은 전역 로거의 출력 대상을 out으로 바꿉니다. TUI가 화면을 점유하는 동안 사용합니다.
func Redirect(out io.Writer, format string) {
	log.Logger = New(out, format)
}
