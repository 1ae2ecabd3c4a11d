// Command vidshare は動画共有サイトのWebサーバーとその運用サブコマンドを提供する。
//
//	vidshare [serve]            Webサーバーを起動する
//	vidshare migrate [up]       未適用のマイグレーションを適用する
//	vidshare migrate down [N]   直近N件のマイグレーションを取り消す
//	vidshare migrate version    適用済みのバージョンを表示する
//	vidshare healthcheck        起動中のサーバーの /health を確認する
package main

import (
	"fmt"
	"os"

	"github.com/hitoshi/vidshare/internal/app"
)

func main() {
	if err := app.Run(os.Stdout, os.Args[1:]); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
