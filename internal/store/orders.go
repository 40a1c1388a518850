package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/lib/pq"
	"github.com/safar/congress-merch/internal/database"
	"github.com/safar/congress-merch/internal/models"
	"github.com/shopspring/decimal"
)

type CreateOrderRequest struct {
	UserID      string
	Kind        string
	TotalAmount decimal.Decimal
	Notes       string
}

type LineItemRequest struct {
	Size         string
	Quantity     int
	UnitPrice    decimal.Decimal
	Participants []ParticipantRequest
}

type ParticipantRequest struct {
	Name   string
	Size   string
	Phone  string
	City   string
	Church string
}

// GroupOrderRequest is the payload of the atomic group checkout. The total is
// derived from the items.
type GroupOrderRequest struct {
	UserID string
	Notes  string
	Items  []LineItemRequest
}

const orderColumns = `
	p.id, p.user_id, p.tipo, p.valor_total, p.status, COALESCE(p.observacoes, ''),
	p.created_at, p.updated_at,
	p.mp_preference_id, p.mp_payment_id, p.mp_status, p.mp_status_detail,
	p.mp_transaction_amount, p.mp_currency_id, p.mp_payment_method_id, p.mp_payment_type_id,
	p.mp_date_created, p.mp_date_approved, p.mp_external_reference, p.mp_collector_id,
	p.mp_operation_type, p.mp_installments, p.mp_card_last_four_digits, p.mp_card_first_six_digits,
	p.mp_fee_amount, p.mp_net_amount`

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanOrder(row rowScanner, order *models.Order, extra ...interface{}) error {
	dest := []interface{}{
		&order.ID,
		&order.UserID,
		&order.Kind,
		&order.TotalAmount,
		&order.Status,
		&order.Notes,
		&order.CreatedAt,
		&order.UpdatedAt,
		&order.MPPreferenceID,
		&order.MPPaymentID,
		&order.MPStatus,
		&order.MPStatusDetail,
		&order.MPTransactionAmount,
		&order.MPCurrencyID,
		&order.MPPaymentMethodID,
		&order.MPPaymentTypeID,
		&order.MPDateCreated,
		&order.MPDateApproved,
		&order.MPExternalReference,
		&order.MPCollectorID,
		&order.MPOperationType,
		&order.MPInstallments,
		&order.MPCardLastFour,
		&order.MPCardFirstSix,
		&order.MPFeeAmount,
		&order.MPNetAmount,
	}
	return row.Scan(append(dest, extra...)...)
}

// ValidateItems rejects empty orders and non-positive quantities or prices.
// Group items must name at least one participant.
func ValidateItems(items []LineItemRequest, requireParticipants bool) error {
	if len(items) == 0 {
		return database.ErrNoLineItems
	}
	for _, item := range items {
		if item.Quantity <= 0 {
			return database.ErrInvalidQuantity
		}
		if !item.UnitPrice.IsPositive() {
			return database.ErrInvalidUnitPrice
		}
		if requireParticipants && len(item.Participants) == 0 {
			return database.ErrNoParticipants
		}
	}
	return nil
}

// OrderTotal sums quantity times unit price over the items.
func OrderTotal(items []LineItemRequest) decimal.Decimal {
	total := decimal.Zero
	for _, item := range items {
		total = total.Add(item.UnitPrice.Mul(decimal.NewFromInt(int64(item.Quantity))))
	}
	return total
}

// CreateOrder inserts a bare pending order. Line items are added separately
// with CreateLineItems.
func CreateOrder(ctx context.Context, db *sql.DB, req CreateOrderRequest) (*models.Order, error) {
	order := &models.Order{
		UserID:      req.UserID,
		Kind:        req.Kind,
		TotalAmount: req.TotalAmount,
		Status:      models.OrderStatusPending,
		Notes:       req.Notes,
	}

	err := db.QueryRowContext(ctx,
		`INSERT INTO pedidos (user_id, tipo, valor_total, status, observacoes, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, NULLIF($5, ''), NOW(), NOW())
		 RETURNING id, created_at, updated_at`,
		req.UserID, req.Kind, req.TotalAmount, models.OrderStatusPending, req.Notes,
	).Scan(&order.ID, &order.CreatedAt, &order.UpdatedAt)
	if err != nil {
		if database.IsForeignKeyViolation(err) || database.IsInvalidInput(err) {
			return nil, database.ErrUserNotFound
		}
		return nil, fmt.Errorf("create order: %w", err)
	}

	return order, nil
}

// CreateLineItems inserts all items of an order in one transaction.
func CreateLineItems(ctx context.Context, db *sql.DB, orderID string, items []LineItemRequest) ([]models.LineItem, error) {
	if err := ValidateItems(items, false); err != nil {
		return nil, err
	}

	var created []models.LineItem
	err := database.WithTransaction(ctx, db, database.DefaultTxOptions(), func(tx *sql.Tx) error {
		created = created[:0]
		for _, item := range items {
			lineItem, err := insertLineItem(ctx, tx, orderID, item)
			if err != nil {
				return err
			}
			created = append(created, *lineItem)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	return created, nil
}

func insertLineItem(ctx context.Context, tx *sql.Tx, orderID string, item LineItemRequest) (*models.LineItem, error) {
	lineItem := &models.LineItem{
		OrderID:   orderID,
		Size:      item.Size,
		Quantity:  item.Quantity,
		UnitPrice: item.UnitPrice,
	}

	err := tx.QueryRowContext(ctx,
		`INSERT INTO itens_pedido (pedido_id, tamanho, quantidade, preco_unitario, created_at)
		 VALUES ($1, $2, $3, $4, NOW())
		 RETURNING id, created_at`,
		orderID, item.Size, item.Quantity, item.UnitPrice,
	).Scan(&lineItem.ID, &lineItem.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("create line item: %w", err)
	}

	return lineItem, nil
}

// CreateGroupOrder writes the order, its line items and their participants
// in a single serializable transaction, retried on serialization failures.
func CreateGroupOrder(ctx context.Context, db *sql.DB, req GroupOrderRequest) (*models.Order, error) {
	if err := ValidateItems(req.Items, true); err != nil {
		return nil, err
	}

	total := OrderTotal(req.Items)
	var order *models.Order

	err := database.WithRetry(ctx, db, database.TxOptions{
		IsolationLevel: sql.LevelSerializable,
		MaxRetries:     3,
	}, func(tx *sql.Tx) error {
		var exists bool
		err := tx.QueryRowContext(ctx,
			"SELECT EXISTS(SELECT 1 FROM users WHERE id = $1)",
			req.UserID).Scan(&exists)
		if err != nil {
			if database.IsInvalidInput(err) {
				return database.ErrUserNotFound
			}
			return fmt.Errorf("check user exists: %w", err)
		}
		if !exists {
			return database.ErrUserNotFound
		}

		order = &models.Order{
			UserID:      req.UserID,
			Kind:        models.OrderKindGroup,
			TotalAmount: total,
			Status:      models.OrderStatusPending,
			Notes:       req.Notes,
		}
		err = tx.QueryRowContext(ctx,
			`INSERT INTO pedidos (user_id, tipo, valor_total, status, observacoes, created_at, updated_at)
			 VALUES ($1, $2, $3, $4, NULLIF($5, ''), NOW(), NOW())
			 RETURNING id, created_at, updated_at`,
			req.UserID, models.OrderKindGroup, total, models.OrderStatusPending, req.Notes,
		).Scan(&order.ID, &order.CreatedAt, &order.UpdatedAt)
		if err != nil {
			return fmt.Errorf("create group order: %w", err)
		}

		for _, item := range req.Items {
			lineItem, err := insertLineItem(ctx, tx, order.ID, item)
			if err != nil {
				return err
			}

			for _, p := range item.Participants {
				participant := models.Participant{
					LineItemID: lineItem.ID,
					Name:       p.Name,
					Size:       p.Size,
					Phone:      p.Phone,
					City:       p.City,
					Church:     p.Church,
				}
				if participant.Size == "" {
					participant.Size = item.Size
				}

				err := tx.QueryRowContext(ctx,
					`INSERT INTO participantes (item_pedido_id, nome, tamanho, telefone, cidade, igreja, created_at)
					 VALUES ($1, $2, $3, NULLIF($4, ''), NULLIF($5, ''), NULLIF($6, ''), NOW())
					 RETURNING id`,
					lineItem.ID, participant.Name, participant.Size, participant.Phone, participant.City, participant.Church,
				).Scan(&participant.ID)
				if err != nil {
					return fmt.Errorf("create participant: %w", err)
				}
				lineItem.Participants = append(lineItem.Participants, participant)
			}

			order.Items = append(order.Items, *lineItem)
		}

		return nil
	})
	if err != nil {
		return nil, err
	}

	return order, nil
}

// GetPendingOrderWithBuyer returns the order joined with its owner, or
// ErrOrderNotFound when it does not exist or has left the pending state.
func GetPendingOrderWithBuyer(ctx context.Context, db *sql.DB, id string) (*models.OrderWithBuyer, error) {
	result := &models.OrderWithBuyer{}

	query := `
		SELECT ` + orderColumns + `, u.nome, u.email
		FROM pedidos p
		JOIN users u ON u.id = p.user_id
		WHERE p.id = $1 AND p.status = $2`

	err := scanOrder(db.QueryRowContext(ctx, query, id, models.OrderStatusPending), &result.Order,
		&result.BuyerName, &result.BuyerEmail)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) || database.IsInvalidInput(err) {
			return nil, database.ErrOrderNotFound
		}
		return nil, fmt.Errorf("get order with buyer: %w", err)
	}

	return result, nil
}

func GetOrder(ctx context.Context, db *sql.DB, id string) (*models.Order, error) {
	order := &models.Order{}

	query := `SELECT ` + orderColumns + ` FROM pedidos p WHERE p.id = $1`

	err := scanOrder(db.QueryRowContext(ctx, query, id), order)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) || database.IsInvalidInput(err) {
			return nil, database.ErrOrderNotFound
		}
		return nil, fmt.Errorf("get order: %w", err)
	}

	return order, nil
}

// GetUserOrder returns an order owned by userID with its items and
// participants.
func GetUserOrder(ctx context.Context, db *sql.DB, userID, id string) (*models.Order, error) {
	order := &models.Order{}

	query := `SELECT ` + orderColumns + ` FROM pedidos p WHERE p.id = $1 AND p.user_id = $2`

	err := scanOrder(db.QueryRowContext(ctx, query, id, userID), order)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) || database.IsInvalidInput(err) {
			return nil, database.ErrOrderNotFound
		}
		return nil, fmt.Errorf("get user order: %w", err)
	}

	items, err := loadItems(ctx, db, []string{order.ID})
	if err != nil {
		return nil, err
	}
	order.Items = items[order.ID]

	return order, nil
}

func GetLineItems(ctx context.Context, db *sql.DB, orderID string) ([]models.LineItem, error) {
	query := `
		SELECT id, pedido_id, tamanho, quantidade, preco_unitario, created_at
		FROM itens_pedido
		WHERE pedido_id = $1
		ORDER BY created_at, id`

	rows, err := db.QueryContext(ctx, query, orderID)
	if err != nil {
		return nil, fmt.Errorf("get line items: %w", err)
	}
	defer rows.Close()

	var items []models.LineItem
	for rows.Next() {
		var item models.LineItem
		err := rows.Scan(
			&item.ID,
			&item.OrderID,
			&item.Size,
			&item.Quantity,
			&item.UnitPrice,
			&item.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("scan line item: %w", err)
		}
		items = append(items, item)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	return items, nil
}

// loadItems fetches the line items and participants of several orders in two
// queries, keyed by order id.
func loadItems(ctx context.Context, db *sql.DB, orderIDs []string) (map[string][]models.LineItem, error) {
	byOrder := make(map[string][]models.LineItem, len(orderIDs))
	if len(orderIDs) == 0 {
		return byOrder, nil
	}

	rows, err := db.QueryContext(ctx,
		`SELECT id, pedido_id, tamanho, quantidade, preco_unitario, created_at
		 FROM itens_pedido
		 WHERE pedido_id = ANY($1::uuid[])
		 ORDER BY created_at, id`,
		pq.Array(orderIDs))
	if err != nil {
		return nil, fmt.Errorf("list line items: %w", err)
	}
	defer rows.Close()

	var items []models.LineItem
	var itemIDs []string
	for rows.Next() {
		var item models.LineItem
		if err := rows.Scan(&item.ID, &item.OrderID, &item.Size, &item.Quantity, &item.UnitPrice, &item.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan line item: %w", err)
		}
		items = append(items, item)
		itemIDs = append(itemIDs, item.ID)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	participants, err := loadParticipants(ctx, db, itemIDs)
	if err != nil {
		return nil, err
	}

	for _, item := range items {
		item.Participants = participants[item.ID]
		byOrder[item.OrderID] = append(byOrder[item.OrderID], item)
	}

	return byOrder, nil
}

func loadParticipants(ctx context.Context, db *sql.DB, itemIDs []string) (map[string][]models.Participant, error) {
	byItem := make(map[string][]models.Participant, len(itemIDs))
	if len(itemIDs) == 0 {
		return byItem, nil
	}

	rows, err := db.QueryContext(ctx,
		`SELECT id, item_pedido_id, nome, tamanho,
		        COALESCE(telefone, ''), COALESCE(cidade, ''), COALESCE(igreja, '')
		 FROM participantes
		 WHERE item_pedido_id = ANY($1::uuid[])
		 ORDER BY created_at, id`,
		pq.Array(itemIDs))
	if err != nil {
		return nil, fmt.Errorf("list participants: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var p models.Participant
		if err := rows.Scan(&p.ID, &p.LineItemID, &p.Name, &p.Size, &p.Phone, &p.City, &p.Church); err != nil {
			return nil, fmt.Errorf("scan participant: %w", err)
		}
		byItem[p.LineItemID] = append(byItem[p.LineItemID], p)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	return byItem, nil
}

func SetPreferenceID(ctx context.Context, db *sql.DB, orderID, preferenceID string) error {
	result, err := db.ExecContext(ctx,
		`UPDATE pedidos
		 SET mp_preference_id = $1,
		     updated_at = NOW()
		 WHERE id = $2`,
		preferenceID, orderID)
	if err != nil {
		return fmt.Errorf("set preference id: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return database.ErrOrderNotFound
	}

	return nil
}

// ApplyPaymentSnapshot overwrites the gateway mirror of an order in one
// statement. An empty snapshot status keeps the current order status.
func ApplyPaymentSnapshot(ctx context.Context, db *sql.DB, orderID string, snap models.PaymentSnapshot) error {
	var raw interface{}
	if len(snap.Raw) > 0 {
		raw = string(snap.Raw)
	}

	result, err := db.ExecContext(ctx,
		`UPDATE pedidos
		 SET status = COALESCE(NULLIF($1, ''), status),
		     mp_payment_id = $2,
		     mp_status = $3,
		     mp_status_detail = NULLIF($4, ''),
		     mp_transaction_amount = $5,
		     mp_currency_id = NULLIF($6, ''),
		     mp_payment_method_id = NULLIF($7, ''),
		     mp_payment_type_id = NULLIF($8, ''),
		     mp_date_created = $9,
		     mp_date_approved = $10,
		     mp_external_reference = $11,
		     mp_collector_id = NULLIF($12, ''),
		     mp_operation_type = NULLIF($13, ''),
		     mp_installments = $14,
		     mp_card_last_four_digits = NULLIF($15, ''),
		     mp_card_first_six_digits = NULLIF($16, ''),
		     mp_fee_amount = $17,
		     mp_net_amount = $18,
		     mp_raw_payment = $19::jsonb,
		     updated_at = NOW()
		 WHERE id = $20`,
		snap.Status,
		snap.PaymentID,
		snap.GatewayStatus,
		snap.StatusDetail,
		snap.TransactionAmount,
		snap.CurrencyID,
		snap.PaymentMethodID,
		snap.PaymentTypeID,
		snap.DateCreated,
		snap.DateApproved,
		snap.ExternalReference,
		snap.CollectorID,
		snap.OperationType,
		snap.Installments,
		snap.CardLastFour,
		snap.CardFirstSix,
		snap.FeeAmount,
		snap.NetAmount,
		raw,
		orderID,
	)
	if err != nil {
		if database.IsInvalidInput(err) {
			return database.ErrOrderNotFound
		}
		return fmt.Errorf("apply payment snapshot: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return database.ErrOrderNotFound
	}

	return nil
}

func ListOrdersCursor(ctx context.Context, db *sql.DB, userID string, cursor string, limit int) (*CursorPage, error) {
	cursorData, err := DecodeCursor(cursor)
	if err != nil {
		return nil, fmt.Errorf("decode cursor: %w", err)
	}

	query := `
		SELECT ` + orderColumns + `
		FROM pedidos p
		WHERE p.user_id = $1
		  AND (p.created_at, p.id) < ($2, $3::uuid)
		ORDER BY p.created_at DESC, p.id DESC
		LIMIT $4`

	rows, err := db.QueryContext(ctx, query, userID, cursorData.CreatedAt, cursorData.ID, limit+1)
	if err != nil {
		return nil, fmt.Errorf("list orders: %w", err)
	}
	defer rows.Close()

	orders := []models.Order{}
	for rows.Next() {
		var order models.Order
		if err := scanOrder(rows, &order); err != nil {
			return nil, fmt.Errorf("scan order: %w", err)
		}
		orders = append(orders, order)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	hasMore := len(orders) > limit
	if hasMore {
		orders = orders[:limit]
	}

	if err := attachItems(ctx, db, orders); err != nil {
		return nil, err
	}

	var nextCursor string
	if hasMore && len(orders) > 0 {
		lastOrder := orders[len(orders)-1]
		nextCursor = EncodeCursor(OrderCursor{
			CreatedAt: lastOrder.CreatedAt,
			ID:        lastOrder.ID,
		})
	}

	return &CursorPage{
		Items:      orders,
		NextCursor: nextCursor,
		HasMore:    hasMore,
	}, nil
}

// ListOrders is the back-office listing across all users, optionally
// filtered by status.
func ListOrders(ctx context.Context, db *sql.DB, status string, page, pageSize int) (*OffsetPage, error) {
	if page < 1 {
		page = 1
	}
	if pageSize < 1 {
		pageSize = 20
	}

	var total int64
	err := db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM pedidos WHERE ($1::text = '' OR status = $1)`,
		status).Scan(&total)
	if err != nil {
		return nil, fmt.Errorf("count orders: %w", err)
	}

	query := `
		SELECT ` + orderColumns + `, u.nome, u.email
		FROM pedidos p
		JOIN users u ON u.id = p.user_id
		WHERE ($1::text = '' OR p.status = $1)
		ORDER BY p.created_at DESC, p.id DESC
		LIMIT $2 OFFSET $3`

	rows, err := db.QueryContext(ctx, query, status, pageSize, (page-1)*pageSize)
	if err != nil {
		return nil, fmt.Errorf("list orders: %w", err)
	}
	defer rows.Close()

	orders := []models.OrderWithBuyer{}
	for rows.Next() {
		var o models.OrderWithBuyer
		if err := scanOrder(rows, &o.Order, &o.BuyerName, &o.BuyerEmail); err != nil {
			return nil, fmt.Errorf("scan order: %w", err)
		}
		orders = append(orders, o)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	return &OffsetPage{
		Items:      orders,
		Total:      total,
		Page:       page,
		PageSize:   pageSize,
		TotalPages: totalPages(total, pageSize),
	}, nil
}

func attachItems(ctx context.Context, db *sql.DB, orders []models.Order) error {
	ids := make([]string, len(orders))
	for i := range orders {
		ids[i] = orders[i].ID
	}

	items, err := loadItems(ctx, db, ids)
	if err != nil {
		return err
	}
	for i := range orders {
		orders[i].Items = items[orders[i].ID]
	}
	return nil
}

// DeletePendingOrder removes an order owned by userID while it is still
// pending. Items and participants go with it through the cascade.
func DeletePendingOrder(ctx context.Context, db *sql.DB, userID, orderID string) error {
	return database.WithTransaction(ctx, db, database.DefaultTxOptions(), func(tx *sql.Tx) error {
		var status string
		err := tx.QueryRowContext(ctx,
			`SELECT status FROM pedidos WHERE id = $1 AND user_id = $2 FOR UPDATE`,
			orderID, userID).Scan(&status)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) || database.IsInvalidInput(err) {
				return database.ErrOrderNotFound
			}
			return fmt.Errorf("lock order: %w", err)
		}

		if status != models.OrderStatusPending {
			return database.ErrOrderNotPending
		}

		if _, err := tx.ExecContext(ctx, `DELETE FROM pedidos WHERE id = $1`, orderID); err != nil {
			return fmt.Errorf("delete order: %w", err)
		}
		return nil
	})
}
