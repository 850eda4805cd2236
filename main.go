// Сервер диагностики здоровья технологического процесса:
// SPC-анализ измерений по партиям, аппаратам, цехам, операторам и интервалам,
// вывод корневых причин по графу рисков и суточный журнал адресных указаний.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"mesdiag/server"
)

func main() {
	cfg := server.LoadConfig()

	srv, err := server.NewServer(cfg)
	if err != nil {
		server.Logger.Error("не удалось собрать сервер", "error", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := srv.Run(ctx); err != nil {
		server.Logger.Error("сервер завершился с ошибкой", "error", err)
		os.Exit(1)
	}
}
