// Package config는 lazyscroll의 설정 관리를 담당합니다.
// 설정 우선순위: 명령행 플래그 > 환경변수 > 설정파일 > 기본값
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/viper"

	"github.com/insajin/lazyscroll/internal/scroll"
)

// AppDir은 설정 디렉토리 이름입니다 (~/.config/lazyscroll).
const AppDir = "lazyscroll"

// Config는 전체 애플리케이션 설정을 나타냅니다.
type Config struct {
	Browser BrowserConfig `mapstructure:"browser" yaml:"browser"`
	Scroll  ScrollConfig  `mapstructure:"scroll" yaml:"scroll"`
	Session SessionConfig `mapstructure:"session" yaml:"session"`
	Logging LoggingConfig `mapstructure:"logging" yaml:"logging"`
}

// BrowserConfig는 브라우저 실행 설정입니다.
type BrowserConfig struct {
	// Backend는 브라우저 자동화 백엔드입니다 ("chromedp", "rod", "playwright").
	Backend string `mapstructure:"backend" yaml:"backend"`
	// Headless가 false이면 브라우저 창이 화면에 표시됩니다.
	Headless bool `mapstructure:"headless" yaml:"headless"`
	// ViewportWidth, ViewportHeight는 뷰포트 크기(픽셀)입니다.
	ViewportWidth  int `mapstructure:"viewport_width" yaml:"viewport_width"`
	ViewportHeight int `mapstructure:"viewport_height" yaml:"viewport_height"`
	// ExecPath는 브라우저 실행 파일 경로입니다. 비어있으면 백엔드 기본값을 사용합니다.
	ExecPath string `mapstructure:"exec_path" yaml:"exec_path"`
	// NavTimeoutSeconds는 페이지 이동 타임아웃(초)입니다.
	NavTimeoutSeconds int `mapstructure:"nav_timeout_seconds" yaml:"nav_timeout_seconds"`
	// IdleTimeoutSeconds는 네트워크 유휴 상태 대기 한도(초)입니다.
	IdleTimeoutSeconds int `mapstructure:"idle_timeout_seconds" yaml:"idle_timeout_seconds"`
}

// ScrollConfig는 스크롤 속도와 상한 설정입니다.
type ScrollConfig struct {
	// StepPx는 한 번에 스크롤하는 거리(픽셀)입니다.
	StepPx int64 `mapstructure:"step_px" yaml:"step_px"`
	// Interval은 스크롤 간격입니다 ("300ms" 형식).
	Interval time.Duration `mapstructure:"interval" yaml:"interval"`
	// MaxTicks는 최대 스크롤 횟수입니다 (0 = 무제한).
	MaxTicks int `mapstructure:"max_ticks" yaml:"max_ticks"`
	// MaxDuration은 최대 스크롤 시간입니다 ("10m" 형식, 0 = 무제한).
	MaxDuration time.Duration `mapstructure:"max_duration" yaml:"max_duration"`
}

// SessionConfig는 실행 흐름 설정입니다.
type SessionConfig struct {
	// Dwell은 스크롤 완료 후 페이지에 머무는 시간입니다 ("45s" 형식).
	Dwell time.Duration `mapstructure:"dwell" yaml:"dwell"`
}

// LoggingConfig는 로깅 설정입니다.
type LoggingConfig struct {
	// Level은 로그 레벨입니다 (debug, info, warn, error).
	Level string `mapstructure:"level" yaml:"level"`
	// Format은 로그 포맷입니다 (json, text).
	Format string `mapstructure:"format" yaml:"format"`
	// File은 로그 파일 경로입니다. 비어있으면 stdout으로 출력합니다.
	File string `mapstructure:"file" yaml:"file"`
}

// SetDefaults는 v에 기본 설정값을 등록합니다.
func SetDefaults(v *viper.Viper) {
	// 브라우저 설정
	v.SetDefault("browser.backend", "chromedp")
	v.SetDefault("browser.headless", false)
	v.SetDefault("browser.viewport_width", 1280)
	v.SetDefault("browser.viewport_height", 800)
	v.SetDefault("browser.exec_path", "")
	v.SetDefault("browser.nav_timeout_seconds", 60)
	v.SetDefault("browser.idle_timeout_seconds", 30)

	// 스크롤 설정
	v.SetDefault("scroll.step_px", scroll.DefaultStep)
	v.SetDefault("scroll.interval", scroll.DefaultInterval)
	v.SetDefault("scroll.max_ticks", scroll.DefaultMaxTicks)
	v.SetDefault("scroll.max_duration", scroll.DefaultMaxDuration)

	// 세션 설정
	v.SetDefault("session.dwell", time.Duration(0))

	// 로깅 설정
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")
	v.SetDefault("logging.file", "")
}

// Load는 전역 viper 인스턴스에서 설정을 로드합니다.
func Load() (*Config, error) {
	return LoadFrom(viper.GetViper())
}

// LoadFrom은 v에서 설정을 로드하고 Config 구조체를 반환합니다.
func LoadFrom(v *viper.Viper) (*Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("설정 파싱 실패: %w", err)
	}

	// 홈 디렉토리 경로 확장
	cfg.Browser.ExecPath = expandPath(cfg.Browser.ExecPath)
	cfg.Logging.File = expandPath(cfg.Logging.File)

	return &cfg, nil
}

// Validate는 설정의 유효성을 검사합니다.
func (c *Config) Validate() error {
	validBackends := map[string]bool{
		"chromedp":   true,
		"rod":        true,
		"playwright": true,
	}
	if !validBackends[c.Browser.Backend] {
		return fmt.Errorf("유효하지 않은 브라우저 백엔드: %s (chromedp, rod, playwright 중 하나)", c.Browser.Backend)
	}

	if c.Browser.ViewportWidth <= 0 || c.Browser.ViewportHeight <= 0 {
		return fmt.Errorf("뷰포트 크기는 양수여야 합니다: %dx%d", c.Browser.ViewportWidth, c.Browser.ViewportHeight)
	}
	if c.Browser.NavTimeoutSeconds < 0 || c.Browser.IdleTimeoutSeconds < 0 {
		return fmt.Errorf("브라우저 타임아웃은 0 이상이어야 합니다")
	}

	if err := c.Scroll.DriverConfig().Validate(); err != nil {
		return fmt.Errorf("스크롤 설정 오류: %w", err)
	}
	// 단위 없는 정수는 나노초로 해석되므로 비정상적으로 짧은 값은 거부합니다.
	if c.Scroll.Interval < time.Millisecond {
		return fmt.Errorf("스크롤 설정 오류: interval은 1ms 이상이어야 합니다 (현재 %s, 예: \"300ms\")", c.Scroll.Interval)
	}
	if c.Scroll.MaxDuration > 0 && c.Scroll.MaxDuration < c.Scroll.Interval {
		return fmt.Errorf("스크롤 설정 오류: max_duration(%s)은 0이거나 interval(%s) 이상이어야 합니다", c.Scroll.MaxDuration, c.Scroll.Interval)
	}

	if c.Session.Dwell < 0 {
		return fmt.Errorf("dwell은 0 이상이어야 합니다")
	}

	// 로그 레벨 검증
	validLevels := map[string]bool{
		"debug": true,
		"info":  true,
		"warn":  true,
		"error": true,
	}
	if !validLevels[c.Logging.Level] {
		return fmt.Errorf("유효하지 않은 로그 레벨: %s (debug, info, warn, error 중 하나)", c.Logging.Level)
	}

	// 로그 포맷 검증
	validFormats := map[string]bool{
		"json": true,
		"text": true,
	}
	if !validFormats[c.Logging.Format] {
		return fmt.Errorf("유효하지 않은 로그 포맷: %s (json, text 중 하나)", c.Logging.Format)
	}

	return nil
}

// DriverConfig는 스크롤 설정을 scroll.Config로 변환합니다.
func (s ScrollConfig) DriverConfig() scroll.Config {
	return scroll.Config{
		Step:        s.StepPx,
		Interval:    s.Interval,
		MaxTicks:    s.MaxTicks,
		MaxDuration: s.MaxDuration,
	}
}

// NavTimeout은 페이지 이동 타임아웃을 반환합니다.
func (b BrowserConfig) NavTimeout() time.Duration {
	return time.Duration(b.NavTimeoutSeconds) * time.Second
}

// IdleTimeout은 네트워크 유휴 대기 한도를 반환합니다.
func (b BrowserConfig) IdleTimeout() time.Duration {
	return time.Duration(b.IdleTimeoutSeconds) * time.Second
}

// expandPath는 ~를 홈 디렉토리로 확장합니다.
func expandPath(path string) string {
	if path == "" {
		return ""
	}
	if path[0] == '~' {
		home, err := os.UserHomeDir()
		if err != nil {
			return path
		}
		return filepath.Join(home, path[1:])
	}
	return path
}

// ConfigDir은 설정 디렉토리 경로를 반환합니다.
func ConfigDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("홈 디렉토리를 찾을 수 없습니다: %w", err)
	}
	return filepath.Join(home, ".config", AppDir), nil
}

// EnsureConfigDir는 설정 디렉토리가 존재하는지 확인하고 없으면 생성합니다.
func EnsureConfigDir() error {
	dir, err := ConfigDir()
	if err != nil {
		return err
	}
	if err := os.MkdirAll(dir, 0700); err != nil {
		return fmt.Errorf("설정 디렉토리 생성 실패: %w", err)
	}
	return nil
}

// DefaultConfigPath는 기본 설정 파일 경로를 반환합니다.
func DefaultConfigPath() string {
	dir, err := ConfigDir()
	if err != nil {
		return ""
	}
	return filepath.Join(dir, "config.yaml")
}
