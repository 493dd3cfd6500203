package main

import (
	gcmd "github.com/goliatone/go-command"
	"github.com/goliatone/go-command/dispatcher"
	"github.com/goliatone/go-errors"
	harvestcmd "github.com/goliatone/go-harvest/command"
	"github.com/goliatone/go-harvest/harvest"
	harvestqry "github.com/goliatone/go-harvest/query"
)

// RegisterHarvestHandlers wires harvest commands and queries to go-command.
func RegisterHarvestHandlers(reg *gcmd.Registry, svc harvest.Service) ([]dispatcher.Subscription, error) {
	if svc == nil {
		return nil, errors.New("harvest service is required", errors.CategoryValidation).
			WithTextCode("SERVICE_REQUIRED")
	}

	record := harvestcmd.NewRecordEntryHandler(svc)
	receipt := harvestcmd.NewExportReceiptHandler(svc)
	summary := harvestcmd.NewExportSummaryHandler(svc)

	entries := harvestqry.NewListEntriesHandler(svc)
	totals := harvestqry.NewHarvestTotalsHandler(svc)
	history := harvestqry.NewExportHistoryHandler(svc)
	status := harvestqry.NewExportStatusHandler(svc)

	subscriptions := []dispatcher.Subscription{
		dispatcher.SubscribeCommand(record),
		dispatcher.SubscribeCommand(receipt),
		dispatcher.SubscribeCommand(summary),
		dispatcher.SubscribeQuery(entries),
		dispatcher.SubscribeQuery(totals),
		dispatcher.SubscribeQuery(history),
		dispatcher.SubscribeQuery(status),
	}

	if reg != nil {
		handlers := []any{record, receipt, summary, entries, totals, history, status}
		for _, handler := range handlers {
			if err := reg.RegisterCommand(handler); err != nil {
				return subscriptions, err
			}
		}
	}

	return subscriptions, nil
}
