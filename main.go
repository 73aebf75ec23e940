// Package main은 lazyscroll CLI의 진입점입니다.
// 브라우저로 고정된 글 페이지를 열어 끝까지 천천히 스크롤합니다.
package main

import (
	"os"

	"github.com/insajin/lazyscroll/cmd"
)

// 빌드 시 ldflags로 주입되는 버전 정보
var (
	version   = "dev"
	commit    = "none"
	buildDate = "unknown"
)

func main() {
	// 버전 정보를 root 패키지에 설정
	cmd.SetVersionInfo(version, commit, buildDate)

	// CLI 실행
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
