// config.go는 설정 관리 명령을 구현합니다.
package cmd

import (
	"fmt"
	"io"
	"os"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/insajin/lazyscroll/internal/config"
)

// configCmd는 설정 관리를 위한 상위 명령어입니다.
var configCmd = &cobra.Command{
	Use:   "config",
	Short: "설정을 관리합니다",
	Long: `설정 파일의 값을 조회하거나 수정합니다.

설정 파일 위치: ~/.config/lazyscroll/config.yaml

모든 키는 LAZYSCROLL_ 접두사 환경변수로도 지정할 수 있습니다.
  예: LAZYSCROLL_SCROLL_STEP_PX=200`,
}

// configSetCmd는 설정 값을 저장하는 명령어입니다.
var configSetCmd = &cobra.Command{
	Use:   "set <key> <value>",
	Short: "설정 값을 저장합니다",
	Long: `설정 파일에 값을 저장합니다.

키는 점(.)으로 구분된 경로를 사용합니다.
예시:
  lazyscroll config set scroll.step_px 200
  lazyscroll config set browser.backend rod
  lazyscroll config set logging.level debug

지원하는 설정 키:
  browser.backend              - 브라우저 백엔드 (chromedp, rod, playwright)
  browser.headless             - 창 없이 실행 (true, false)
  browser.viewport_width       - 뷰포트 너비(픽셀)
  browser.viewport_height      - 뷰포트 높이(픽셀)
  browser.exec_path            - 브라우저 실행 파일 경로
  browser.nav_timeout_seconds  - 페이지 이동 타임아웃(초)
  browser.idle_timeout_seconds - 네트워크 유휴 대기 타임아웃(초)
  scroll.step_px               - 한 번에 스크롤할 거리(픽셀)
  scroll.interval              - 스크롤 간격 (예: 300ms)
  scroll.max_ticks             - 최대 스크롤 횟수 (0 = 무제한)
  scroll.max_duration          - 최대 스크롤 시간 (예: 10m, 0 = 무제한)
  session.dwell                - 완료 후 머무는 시간 (예: 45s)
  logging.level                - 로그 레벨 (debug, info, warn, error)
  logging.format               - 로그 포맷 (json, text)
  logging.file                 - 로그 파일 경로 (비어있으면 stdout)`,
	Args: cobra.ExactArgs(2),
	RunE: runConfigSet,
}

// configGetCmd는 설정 값을 조회하는 명령어입니다.
var configGetCmd = &cobra.Command{
	Use:   "get <key>",
	Short: "설정 값을 조회합니다",
	Long: `설정 파일에서 특정 키의 값을 조회합니다.

예시:
  lazyscroll config get scroll.interval
  lazyscroll config get browser.backend`,
	Args: cobra.ExactArgs(1),
	RunE: runConfigGet,
}

// configListCmd는 전체 설정을 출력하는 명령어입니다.
var configListCmd = &cobra.Command{
	Use:   "list",
	Short: "전체 설정을 출력합니다",
	Long: `현재 적용된 모든 설정을 YAML 포맷으로 출력합니다.

LAZYSCROLL_ 환경변수로 덮어쓴 값도 함께 표시됩니다.`,
	RunE: runConfigList,
}

// configPathCmd는 설정 파일 경로를 출력하는 명령어입니다.
var configPathCmd = &cobra.Command{
	Use:   "path",
	Short: "설정 파일 경로를 출력합니다",
	RunE: func(cmd *cobra.Command, args []string) error {
		fmt.Fprintln(cmd.OutOrStdout(), config.DefaultConfigPath())
		return nil
	},
}

// configInitCmd는 기본 설정 파일을 생성하는 명령어입니다.
var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "기본 설정 파일을 생성합니다",
	Long: `기본 설정 파일을 ~/.config/lazyscroll/config.yaml에 생성합니다.

이미 파일이 존재하면 덮어쓰지 않습니다.
강제로 덮어쓰려면 --force 플래그를 사용하세요.`,
	RunE: runConfigInit,
}

var forceInit bool

// 기본 설정 파일 내용
const defaultConfigYAML = `# lazyscroll 설정 파일
# 생성됨: lazyscroll config init

browser:
  backend: "chromedp"        # chromedp, rod, playwright
  headless: false
  viewport_width: 1280
  viewport_height: 800
  exec_path: ""              # 비어있으면 자동 탐색
  nav_timeout_seconds: 60
  idle_timeout_seconds: 30

scroll:
  step_px: 100
  interval: "300ms"
  max_ticks: 10000           # 0 = 무제한
  max_duration: "10m"        # 0 = 무제한

session:
  dwell: "0s"

logging:
  level: "info"    # debug, info, warn, error
  format: "json"   # json, text
  file: ""         # 비어있으면 stdout
`

// validConfigKeys는 config set으로 변경할 수 있는 키 목록입니다.
var validConfigKeys = map[string]bool{
	"browser.backend":              true,
	"browser.headless":             true,
	"browser.viewport_width":       true,
	"browser.viewport_height":      true,
	"browser.exec_path":            true,
	"browser.nav_timeout_seconds":  true,
	"browser.idle_timeout_seconds": true,
	"scroll.step_px":               true,
	"scroll.interval":              true,
	"scroll.max_ticks":             true,
	"scroll.max_duration":          true,
	"session.dwell":                true,
	"logging.level":                true,
	"logging.format":               true,
	"logging.file":                 true,
}

func init() {
	rootCmd.AddCommand(configCmd)

	// 하위 명령 등록
	configCmd.AddCommand(configSetCmd)
	configCmd.AddCommand(configGetCmd)
	configCmd.AddCommand(configListCmd)
	configCmd.AddCommand(configPathCmd)
	configCmd.AddCommand(configInitCmd)

	configInitCmd.Flags().BoolVar(&forceInit, "force", false, "기존 파일을 덮어씁니다")
}

// runConfigSet은 설정 값을 저장합니다.
func runConfigSet(cmd *cobra.Command, args []string) error {
	key, value := args[0], args[1]

	if !isValidConfigKey(key) {
		return fmt.Errorf("알 수 없는 설정 키: %s", key)
	}

	parsedValue, err := parseConfigValueFor(key, value)
	if err != nil {
		return err
	}
	viper.Set(key, parsedValue)

	// 저장 전에 전체 설정이 유효한지 확인
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("설정 로드 실패: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	if err := config.EnsureConfigDir(); err != nil {
		return fmt.Errorf("설정 디렉토리 생성 실패: %w", err)
	}

	configPath := config.DefaultConfigPath()
	if err := viper.WriteConfigAs(configPath); err != nil {
		return fmt.Errorf("설정 파일 저장 실패: %w", err)
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "%s = %v\n", key, parsedValue)
	fmt.Fprintf(out, "설정이 저장되었습니다: %s\n", configPath)
	return nil
}

// runConfigGet은 설정 값을 조회합니다.
func runConfigGet(cmd *cobra.Command, args []string) error {
	key := args[0]

	value := viper.Get(key)
	if value == nil {
		return fmt.Errorf("설정 키를 찾을 수 없습니다: %s", key)
	}

	fmt.Fprintf(cmd.OutOrStdout(), "%s = %v\n", key, value)
	return nil
}

// runConfigList는 전체 설정을 출력합니다.
func runConfigList(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("설정 로드 실패: %w", err)
	}

	out := cmd.OutOrStdout()
	if configFile := viper.ConfigFileUsed(); configFile != "" {
		fmt.Fprintf(out, "# 설정 파일: %s\n", configFile)
	} else {
		fmt.Fprintf(out, "# 설정 파일: (기본값 사용 중)\n")
	}
	fmt.Fprintln(out)

	yamlData, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("YAML 직렬화 실패: %w", err)
	}
	fmt.Fprintln(out, string(yamlData))

	printEnvOverrides(out, os.Environ())
	return nil
}

// runConfigInit은 기본 설정 파일을 생성합니다.
func runConfigInit(cmd *cobra.Command, args []string) error {
	configPath := config.DefaultConfigPath()

	if !forceInit {
		if _, err := os.Stat(configPath); err == nil {
			return fmt.Errorf("설정 파일이 이미 존재합니다: %s\n--force 플래그로 덮어쓸 수 있습니다", configPath)
		}
	}

	if err := config.EnsureConfigDir(); err != nil {
		return fmt.Errorf("설정 디렉토리 생성 실패: %w", err)
	}

	if err := os.WriteFile(configPath, []byte(defaultConfigYAML), 0600); err != nil {
		return fmt.Errorf("설정 파일 생성 실패: %w", err)
	}

	fmt.Fprintf(cmd.OutOrStdout(), "설정 파일이 생성되었습니다: %s\n", configPath)
	return nil
}

// isValidConfigKey는 유효한 설정 키인지 확인합니다.
func isValidConfigKey(key string) bool {
	return validConfigKeys[key]
}

// durationKeys는 "300ms", "10m" 형식의 기간 값을 받는 키입니다.
var durationKeys = map[string]bool{
	"scroll.interval":     true,
	"scroll.max_duration": true,
	"session.dwell":       true,
}

// parseConfigValueFor는 키에 맞게 값을 변환합니다.
// 기간 키는 단위가 필요하며, 단위 없는 숫자는 나노초로 해석되므로 거부합니다.
func parseConfigValueFor(key, value string) (interface{}, error) {
	if !durationKeys[key] {
		return parseConfigValue(value), nil
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return nil, fmt.Errorf("%s는 기간 값이어야 합니다 (예: 300ms, 45s, 10m): %w", key, err)
	}
	return d.String(), nil
}

// parseConfigValue는 문자열 값을 적절한 타입으로 변환합니다.
func parseConfigValue(value string) interface{} {
	if value == "true" || value == "false" {
		return value == "true"
	}
	if i, err := strconv.Atoi(value); err == nil {
		return i
	}
	if f, err := strconv.ParseFloat(value, 64); err == nil {
		return f
	}
	return value
}

// printEnvOverrides는 LAZYSCROLL_ 접두사 환경변수를 정렬해 출력합니다.
func printEnvOverrides(out io.Writer, environ []string) {
	var overrides []string
	for _, kv := range environ {
		if strings.HasPrefix(kv, "LAZYSCROLL_") {
			overrides = append(overrides, kv)
		}
	}
	if len(overrides) == 0 {
		return
	}
	sort.Strings(overrides)

	fmt.Fprintln(out, "# 환경변수 덮어쓰기:")
	for _, kv := range overrides {
		fmt.Fprintf(out, "  %s\n", kv)
	}
}
