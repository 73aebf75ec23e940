package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/insajin/lazyscroll/internal/browser"
	"github.com/insajin/lazyscroll/internal/config"
	"github.com/insajin/lazyscroll/internal/logger"
	"github.com/insajin/lazyscroll/internal/metrics"
	"github.com/insajin/lazyscroll/internal/scroll"
	"github.com/insajin/lazyscroll/internal/session"
	"github.com/insajin/lazyscroll/internal/tui"
)

// ArticleURL은 스크롤 대상 페이지입니다.
const ArticleURL = "https://medium.com/@nerdsaver/will-you-be-working-in-vr-lets-look-at-microsofts-volumetric-apps-95769403c43f"

var (
	scrollTUI  bool
	scrollJSON bool
)

// scrollCmd는 브라우저를 열어 대상 페이지를 끝까지 스크롤합니다.
var scrollCmd = &cobra.Command{
	Use:   "scroll",
	Short: "대상 페이지를 끝까지 천천히 스크롤합니다",
	Long: `브라우저를 실행하고 대상 글 페이지로 이동한 뒤, 네트워크가 거의 유휴
상태가 되면 일정 간격으로 조금씩 아래로 스크롤합니다.

누적 스크롤 거리가 페이지의 현재 높이에 도달하면 완료됩니다.
페이지 높이가 계속 늘어나는 경우를 대비해 최대 횟수와 최대 시간 제한이 있습니다.

예시:
  lazyscroll scroll
  lazyscroll scroll --headless --backend rod
  lazyscroll scroll --step 200 --interval 150ms --max-duration 2m
  lazyscroll scroll --tui`,
	RunE: runScroll,
}

func init() {
	rootCmd.AddCommand(scrollCmd)

	f := scrollCmd.Flags()
	f.String("backend", "chromedp", "브라우저 백엔드 (chromedp, rod, playwright)")
	f.Bool("headless", false, "브라우저 창 없이 실행")
	f.String("exec-path", "", "브라우저 실행 파일 경로")
	f.Int64("step", scroll.DefaultStep, "한 번에 스크롤할 거리(픽셀)")
	f.Duration("interval", scroll.DefaultInterval, "스크롤 간격")
	f.Int("max-ticks", scroll.DefaultMaxTicks, "최대 스크롤 횟수 (0 = 무제한)")
	f.Duration("max-duration", scroll.DefaultMaxDuration, "최대 스크롤 시간 (0 = 무제한)")
	f.Duration("dwell", 0, "스크롤 완료 후 페이지에 머무는 시간")
	f.BoolVar(&scrollTUI, "tui", false, "진행 상황을 TUI로 표시")
	f.BoolVar(&scrollJSON, "json", false, "실행 결과를 JSON으로 출력")

	// 플래그는 명시적으로 지정된 경우에만 설정값을 덮어씁니다.
	_ = viper.BindPFlag("browser.backend", f.Lookup("backend"))
	_ = viper.BindPFlag("browser.headless", f.Lookup("headless"))
	_ = viper.BindPFlag("browser.exec_path", f.Lookup("exec-path"))
	_ = viper.BindPFlag("scroll.step_px", f.Lookup("step"))
	_ = viper.BindPFlag("scroll.max_ticks", f.Lookup("max-ticks"))
	_ = viper.BindPFlag("scroll.interval", f.Lookup("interval"))
	_ = viper.BindPFlag("scroll.max_duration", f.Lookup("max-duration"))
	_ = viper.BindPFlag("session.dwell", f.Lookup("dwell"))
}

// runScroll은 설정을 로드하고 스크롤 세션을 실행합니다.
func runScroll(cmd *cobra.Command, args []string) error {
	cfg, err := loadScrollConfig()
	if err != nil {
		return err
	}

	backend, err := browser.New(cfg.Browser.Backend, browserOptions(cfg.Browser))
	if err != nil {
		return err
	}
	driver, err := scroll.NewDriver(cfg.Scroll.DriverConfig())
	if err != nil {
		return err
	}

	// SIGINT/SIGTERM 수신 시 실행을 취소합니다.
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	m := metrics.NewMetrics()
	var report session.Report
	if scrollTUI {
		report, err = runWithTUI(ctx, cfg, backend, driver, m)
	} else {
		runner := session.New(backend, driver,
			session.WithMetrics(m),
			session.WithDwell(cfg.Session.Dwell),
		)
		report, err = runner.Run(ctx, ArticleURL)
	}

	if report.RunID != "" {
		if saveErr := SaveLastRun(&LastRun{Report: report, Metrics: m.Snapshot()}); saveErr != nil {
			logger.Warn().Err(saveErr).Msg("실행 기록 저장 실패")
		}
	}
	if printErr := printReport(cmd.OutOrStdout(), report); printErr != nil {
		logger.Warn().Err(printErr).Msg("실행 결과 출력 실패")
	}
	return err
}

// runWithTUI는 세션을 백그라운드에서 실행하고 진행 상황을 TUI로 표시합니다.
func runWithTUI(ctx context.Context, cfg *config.Config, backend browser.Backend, driver *scroll.Driver, m *metrics.Metrics) (session.Report, error) {
	// TUI가 화면을 점유하는 동안 stdout 로그를 끕니다.
	if cfg.Logging.File == "" {
		logger.Redirect(io.Discard, cfg.Logging.Format)
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	program := tea.NewProgram(tui.NewModel(ArticleURL, backend.Name(), cancel), tea.WithAltScreen())
	runner := session.New(backend, driver,
		session.WithMetrics(m),
		session.WithDwell(cfg.Session.Dwell),
		session.WithProgress(func(p session.Progress) {
			program.Send(tui.ProgressMsg(p))
		}),
	)

	type outcome struct {
		report session.Report
		err    error
	}
	done := make(chan outcome, 1)
	go func() {
		report, err := runner.Run(ctx, ArticleURL)
		done <- outcome{report, err}
	}()

	if _, err := program.Run(); err != nil {
		cancel()
		res := <-done
		return res.report, fmt.Errorf("TUI 오류: %w", err)
	}

	res := <-done
	return res.report, res.err
}

// loadScrollConfig는 플래그가 반영된 설정을 로드하고 검증합니다.
// 시간 플래그는 viper 키에 바인딩되어 time.Duration 그대로 전달됩니다.
func loadScrollConfig() (*config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("설정 로드 실패: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// browserOptions는 브라우저 설정을 browser.Options로 변환합니다.
func browserOptions(b config.BrowserConfig) browser.Options {
	return browser.Options{
		Headless:    b.Headless,
		ViewportW:   b.ViewportWidth,
		ViewportH:   b.ViewportHeight,
		ExecPath:    b.ExecPath,
		NavTimeout:  b.NavTimeout(),
		IdleTimeout: b.IdleTimeout(),
	}
}

// printReport는 실행 결과를 출력합니다.
func printReport(out io.Writer, report session.Report) error {
	if report.RunID == "" {
		return nil
	}
	if scrollJSON {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(report)
	}

	res := report.Result
	_, err := fmt.Fprintf(out, "%s: %d ticks, %d px scrolled, page height %d px, %s (%s)\n",
		report.Backend, res.Ticks, res.Distance, res.LastHeight,
		res.Elapsed.Round(time.Millisecond), orUnknown(string(res.Outcome)))
	return err
}

func orUnknown(s string) string {
	if s == "" {
		return "not started"
	}
	return s
}
