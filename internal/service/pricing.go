package service

import (
	"context"
	"fmt"
	"strings"

	"mejapos/backend/internal/domain"
	"mejapos/backend/internal/store"
	"mejapos/backend/internal/xid"
)

// priceOrderItems resolves requested items against the menu and returns
// fully priced order lines plus the order total. Option selections are
// snapshotted by name and price delta so later menu edits cannot change
// an existing order. Any unknown menu item, option, or value fails the
// whole pricing pass.
func (s *Service) priceOrderItems(ctx context.Context, orderID string, reqs []domain.OrderItemRequest) ([]domain.OrderItem, int64, error) {
	ids := make([]string, 0, len(reqs))
	for _, r := range reqs {
		ids = append(ids, strings.TrimSpace(r.MenuItemID))
	}
	menu, err := s.repo.GetMenuItemsByIDs(ctx, ids)
	if err != nil {
		return nil, 0, err
	}

	items := make([]domain.OrderItem, 0, len(reqs))
	var orderTotal int64
	for i, r := range reqs {
		menuItemID := ids[i]
		if r.Quantity <= 0 {
			return nil, 0, fmt.Errorf("%w: quantity must be positive for menu item %s", store.ErrInvalidInput, menuItemID)
		}
		menuItem, ok := menu[menuItemID]
		if !ok {
			return nil, 0, fmt.Errorf("%w: menu item %s", store.ErrNotFound, menuItemID)
		}
		if !menuItem.Active {
			return nil, 0, fmt.Errorf("%w: menu item %s is not available", store.ErrInvalidInput, menuItemID)
		}

		snapshots, deltaPerUnit, err := resolveOptions(menuItem, r.Options)
		if err != nil {
			return nil, 0, err
		}

		qty := int64(r.Quantity)
		lineTotal := menuItem.PriceCents*qty + deltaPerUnit*qty
		items = append(items, domain.OrderItem{
			ID:             xid.New("item"),
			OrderID:        orderID,
			MenuItemID:     menuItem.ID,
			Name:           menuItem.Name,
			UnitPriceCents: menuItem.PriceCents,
			Quantity:       r.Quantity,
			TotalCents:     lineTotal,
			Notes:          strings.TrimSpace(r.Notes),
			Options:        snapshots,
		})
		orderTotal += lineTotal
	}
	return items, orderTotal, nil
}

func resolveOptions(menuItem domain.MenuItem, selections []domain.OrderItemOptionRequest) ([]domain.OrderItemOption, int64, error) {
	if len(selections) == 0 {
		return nil, 0, nil
	}

	var snapshots []domain.OrderItemOption
	var deltaPerUnit int64
	for _, sel := range selections {
		option, ok := findOption(menuItem.Options, strings.TrimSpace(sel.OptionID))
		if !ok {
			return nil, 0, fmt.Errorf("%w: option %s on menu item %s", store.ErrNotFound, sel.OptionID, menuItem.ID)
		}
		value, ok := findOptionValue(option.Values, strings.TrimSpace(sel.ValueID))
		if !ok {
			return nil, 0, fmt.Errorf("%w: value %s on option %s", store.ErrNotFound, sel.ValueID, option.ID)
		}
		snapshots = append(snapshots, domain.OrderItemOption{
			ID:              xid.New("itemopt"),
			OptionName:      option.Name,
			ValueName:       value.Name,
			PriceDeltaCents: value.PriceDeltaCents,
		})
		deltaPerUnit += value.PriceDeltaCents
	}
	return snapshots, deltaPerUnit, nil
}

func findOption(options []domain.MenuOption, id string) (domain.MenuOption, bool) {
	for _, opt := range options {
		if opt.ID == id {
			return opt, true
		}
	}
	return domain.MenuOption{}, false
}

func findOptionValue(values []domain.MenuOptionValue, id string) (domain.MenuOptionValue, bool) {
	for _, v := range values {
		if v.ID == id {
			return v, true
		}
	}
	return domain.MenuOptionValue{}, false
}
