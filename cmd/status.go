// status.go는 마지막 스크롤 실행 결과 조회 명령을 구현합니다.
package cmd

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/insajin/lazyscroll/internal/config"
	"github.com/insajin/lazyscroll/internal/metrics"
	"github.com/insajin/lazyscroll/internal/scroll"
	"github.com/insajin/lazyscroll/internal/session"
)

// LastRun은 마지막 실행 기록입니다.
type LastRun struct {
	// Report는 세션 실행 결과입니다.
	Report session.Report `json:"report"`
	// Metrics는 실행 종료 시점의 메트릭 스냅샷입니다.
	Metrics metrics.MetricsSnapshot `json:"metrics"`
}

// statusCmd는 마지막 실행 결과를 확인하는 명령어입니다.
var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "마지막 스크롤 실행 결과를 확인합니다",
	Long: `가장 최근에 실행한 scroll 명령의 결과와 통계를 표시합니다.

표시 항목:
  - 실행 ID와 백엔드
  - 종료 사유 (completed, max_ticks, timeout, canceled, page_unavailable)
  - 스크롤 횟수, 누적 거리, 마지막 페이지 높이
  - 실행 시간과 평균 틱 지연

이 명령은 실행 기록 파일을 기반으로 정보를 표시합니다.`,
	RunE: runStatus,
}

var (
	statusJSON   bool
	statusSimple bool
)

func init() {
	rootCmd.AddCommand(statusCmd)

	statusCmd.Flags().BoolVar(&statusJSON, "json", false, "JSON 형식으로 출력")
	statusCmd.Flags().BoolVarP(&statusSimple, "simple", "s", false, "간단한 형식으로 출력")
}

// runStatus는 status 명령의 실행 로직입니다.
func runStatus(cmd *cobra.Command, args []string) error {
	last, err := LoadLastRun()
	if err != nil {
		return fmt.Errorf("실행 기록 읽기 실패: %w", err)
	}

	out := cmd.OutOrStdout()
	if last == nil {
		fmt.Fprintln(out, "실행 기록이 없습니다. 'lazyscroll scroll'로 실행하세요.")
		return nil
	}

	switch {
	case statusJSON:
		return printStatusJSON(out, last)
	case statusSimple:
		return printStatusSimple(out, last)
	default:
		return printStatusFull(out, last)
	}
}

// printStatusJSON은 JSON 형식으로 실행 기록을 출력합니다.
func printStatusJSON(out io.Writer, last *LastRun) error {
	data, err := json.MarshalIndent(last, "", "  ")
	if err != nil {
		return fmt.Errorf("JSON 직렬화 실패: %w", err)
	}
	_, err = fmt.Fprintln(out, string(data))
	return err
}

// printStatusSimple은 종료 사유만 출력합니다.
func printStatusSimple(out io.Writer, last *LastRun) error {
	outcome := last.Report.Result.Outcome
	if outcome == "" {
		outcome = "not_started"
	}
	_, err := fmt.Fprintln(out, outcome)
	return err
}

// printStatusFull은 전체 형식으로 실행 기록을 출력합니다.
func printStatusFull(out io.Writer, last *LastRun) error {
	r := last.Report
	res := r.Result

	fmt.Fprintln(out, "lazyscroll 마지막 실행")
	fmt.Fprintln(out, "======================")
	fmt.Fprintln(out)
	fmt.Fprintf(out, "실행 ID:     %s\n", r.RunID)
	fmt.Fprintf(out, "백엔드:      %s\n", r.Backend)
	fmt.Fprintf(out, "대상:        %s\n", r.URL)
	if !r.Started.IsZero() {
		fmt.Fprintf(out, "시작:        %s\n", r.Started.Local().Format(time.DateTime))
	}
	if !r.Finished.IsZero() && !r.Started.IsZero() {
		fmt.Fprintf(out, "소요 시간:   %s\n", formatDuration(r.Finished.Sub(r.Started)))
	}
	fmt.Fprintln(out)

	fmt.Fprintln(out, "스크롤")
	fmt.Fprintln(out, "------")
	fmt.Fprintf(out, "종료 사유:   %s\n", describeOutcome(res.Outcome))
	fmt.Fprintf(out, "틱:          %d\n", res.Ticks)
	fmt.Fprintf(out, "누적 거리:   %d px\n", res.Distance)
	fmt.Fprintf(out, "페이지 높이: %d px\n", res.LastHeight)
	fmt.Fprintf(out, "스크롤 시간: %s\n", formatDuration(res.Elapsed))
	if last.Metrics.AvgTickMs > 0 {
		fmt.Fprintf(out, "평균 틱 지연: %.1fms\n", last.Metrics.AvgTickMs)
	}
	return nil
}

// describeOutcome은 종료 사유를 사람이 읽기 쉬운 형태로 변환합니다.
func describeOutcome(o scroll.Outcome) string {
	switch o {
	case scroll.OutcomeCompleted:
		return "완료 (completed)"
	case scroll.OutcomeMaxTicks:
		return "최대 횟수 도달 (max_ticks)"
	case scroll.OutcomeTimeout:
		return "시간 초과 (timeout)"
	case scroll.OutcomeCanceled:
		return "취소됨 (canceled)"
	case scroll.OutcomePageUnavailable:
		return "페이지 사용 불가 (page_unavailable)"
	default:
		return "시작되지 않음"
	}
}

// getStatusFilePath는 실행 기록 파일 경로를 반환합니다.
func getStatusFilePath() string {
	dir, err := config.ConfigDir()
	if err != nil {
		return ""
	}
	return filepath.Join(dir, "last_run.json")
}

// formatDuration은 기간을 읽기 쉬운 형식으로 포맷합니다.
func formatDuration(d time.Duration) string {
	hours := int(d.Hours())
	minutes := int(d.Minutes()) % 60
	seconds := int(d.Seconds()) % 60

	if hours > 0 {
		return fmt.Sprintf("%d시간 %d분 %d초", hours, minutes, seconds)
	}
	if minutes > 0 {
		return fmt.Sprintf("%d분 %d초", minutes, seconds)
	}
	if d < time.Second {
		return fmt.Sprintf("%dms", d.Milliseconds())
	}
	return fmt.Sprintf("%d초", seconds)
}

// SaveLastRun은 실행 기록을 파일에 저장합니다.
// scroll 명령에서 사용됩니다.
func SaveLastRun(last *LastRun) error {
	statusFile := getStatusFilePath()
	if statusFile == "" {
		return fmt.Errorf("실행 기록 파일 경로를 찾을 수 없습니다")
	}

	if err := config.EnsureConfigDir(); err != nil {
		return fmt.Errorf("설정 디렉토리 생성 실패: %w", err)
	}

	data, err := json.MarshalIndent(last, "", "  ")
	if err != nil {
		return fmt.Errorf("JSON 직렬화 실패: %w", err)
	}

	if err := os.WriteFile(statusFile, data, 0600); err != nil {
		return fmt.Errorf("실행 기록 저장 실패: %w", err)
	}
	return nil
}

// LoadLastRun은 저장된 실행 기록을 읽습니다. 기록이 없으면 nil을 반환합니다.
func LoadLastRun() (*LastRun, error) {
	statusFile := getStatusFilePath()
	if statusFile == "" {
		return nil, fmt.Errorf("실행 기록 파일 경로를 찾을 수 없습니다")
	}

	data, err := os.ReadFile(statusFile)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	var last LastRun
	if err := json.Unmarshal(data, &last); err != nil {
		return nil, fmt.Errorf("실행 기록 파싱 실패: %w", err)
	}
	return &last, nil
}
