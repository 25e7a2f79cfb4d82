package main

import (
	"time"

	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/sirupsen/logrus"

	httpadp "mikopo-backend/internal/adapter/http"
	"mikopo-backend/internal/adapter/middleware"
	"mikopo-backend/internal/adapter/repository/mysql"
	"mikopo-backend/internal/config"
	"mikopo-backend/internal/domain/event"
	installmentDomain "mikopo-backend/internal/domain/installment"
	loanDomain "mikopo-backend/internal/domain/loan"
	paymentDomain "mikopo-backend/internal/domain/payment"
	penaltyDomain "mikopo-backend/internal/domain/penalty"
	"mikopo-backend/internal/infrastructure/cache"
	"mikopo-backend/internal/infrastructure/db"
	"mikopo-backend/internal/infrastructure/gateway"
	"mikopo-backend/internal/infrastructure/notify"
	"mikopo-backend/internal/scheduler"
	"mikopo-backend/internal/usecase/ledger"
	"mikopo-backend/internal/usecase/penalty"
	"mikopo-backend/internal/usecase/reconcile"
	"mikopo-backend/internal/usecase/schedule"
)

func main() {
	log := logrus.New()
	log.SetFormatter(&logrus.JSONFormatter{})

	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		log.WithError(err).Fatal("invalid configuration")
	}

	gdb, err := db.OpenGorm(cfg.MySQLDSN())
	if err != nil {
		log.WithError(err).Fatal("mysql connect failed")
	}
	if err := gdb.AutoMigrate(
		&loanDomain.Loan{},
		&installmentDomain.Entry{},
		&paymentDomain.Intent{},
		&paymentDomain.Allocation{},
		&penaltyDomain.Entry{},
	); err != nil {
		log.WithError(err).Fatal("migration failed")
	}

	rdb, err := cache.OpenRedis(cfg.RedisAddr, cfg.RedisDB)
	if err != nil {
		log.WithError(err).Fatal("redis connect failed")
	}

	loans := mysql.NewLoanRepository(gdb)
	payments := mysql.NewPaymentRepository(gdb)
	tx := mysql.NewGormUoW(gdb)

	gw := gateway.NewClient(cfg.GatewayBaseURL, cfg.GatewayAPIKey, 15*time.Second, log)

	scheduleUC := schedule.NewUsecase(loans, tx, log)
	ledgerUC := ledger.NewUsecase(tx, ledger.Config{GraceDays: cfg.GraceDays}, log)
	penaltyUC := penalty.NewUsecase(loans, tx, penalty.Config{
		GraceDays:        cfg.GraceDays,
		DefaultAfterDays: cfg.DefaultAfterDays,
	}, log)
	reconcileUC := reconcile.NewUsecase(payments, loans, ledgerUC, gw, reconcile.Config{
		AmountTolerance:    cfg.AmountTolerance,
		MaxRetries:         cfg.MaxCallbackRetries,
		MaxConflictRetries: cfg.MaxConflictRetries,
		IntentTTL:          time.Duration(cfg.IntentTTLMins) * time.Minute,
	}, log)

	dispatch := event.NewDispatcher(log, notify.NewLogNotifier(log), notify.NewLogAudit(log))

	sched := scheduler.New(log, dispatch)
	if err := sched.RegisterPenaltySweep(cfg.PenaltyCronSpec, penaltyUC); err != nil {
		log.WithError(err).Fatal("bad penalty cron spec")
	}
	if err := sched.RegisterExpirySweep(cfg.ExpiryCronSpec, reconcileUC); err != nil {
		log.WithError(err).Fatal("bad expiry cron spec")
	}
	sched.Start()
	defer sched.Stop()

	h := httpadp.NewHandler()
	lh := httpadp.NewLoanHandler(scheduleUC, dispatch)
	ph := httpadp.NewPaymentHandler(ledgerUC, reconcileUC, dispatch)

	e := echo.New()
	e.HideBanner = true
	e.Validator = httpadp.NewValidator()
	e.Use(echomw.Logger(), echomw.Recover())

	idemp := middleware.Idempotency(rdb, time.Duration(cfg.IdempTTLSecs)*time.Second, log)

	e.GET("/health", h.Health)

	loansG := e.Group("/loans")
	loansG.POST("", lh.CreateLoan, idemp)
	loansG.GET("/:loan_id", lh.GetLoan)
	loansG.POST("/:loan_id/approve", lh.ApproveLoan, idemp)
	loansG.POST("/:loan_id/cancel", lh.CancelLoan, idemp)
	loansG.POST("/:loan_id/activate", lh.ActivateLoan, idemp)
	loansG.GET("/:loan_id/schedule", lh.GetSchedule)
	loansG.GET("/:loan_id/outstanding", lh.GetOutstanding)

	loansG.POST("/:loan_id/payments", ph.ApplyPayment, idemp)
	loansG.POST("/:loan_id/installments/:installment_id/waive", ph.WaiveInstallment, idemp)
	loansG.POST("/:loan_id/penalties/:penalty_id/waive", ph.WaivePenalty, idemp)
	loansG.POST("/:loan_id/payments/:intent_id/cancel", ph.CancelPayment, idemp)
	loansG.POST("/:loan_id/payments/initiate", ph.InitiatePayment, idemp)

	e.POST("/payments/:intent_id/retry", ph.RetryPayment, idemp)
	// The provider signs requests with the correlation token; no idempotency
	// headers here, the reconciler absorbs duplicate deliveries itself.
	e.POST("/payments/gateway/callback", ph.GatewayCallback)

	addr := ":" + cfg.AppPort
	log.WithField("addr", addr).Info("listening")
	if err := e.Start(addr); err != nil {
		log.Fatal(err)
	}
}
