package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"checkout-service/internal/orders"
	"checkout-service/internal/payments"
)

// querier is what *sql.DB and *sql.Tx have in common.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

type Store struct {
	db *sql.DB
}

func NewStore(db *sql.DB) (*Store, error) {
	if db == nil {
		return nil, fmt.Errorf("db is nil")
	}
	return &Store{db: db}, nil
}

func (s *Store) WithTx(ctx context.Context, fn func(tx orders.Tx) error) error {
	return s.withTx(ctx, func(tx *sql.Tx) error {
		return fn(&Tx{tx: tx})
	})
}

func (s *Store) withTx(ctx context.Context, fn func(*sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelReadCommitted})
	if err != nil {
		return fmt.Errorf("failed to begin tx: %w", err)
	}

	if err := fn(tx); err != nil {
		if er := tx.Rollback(); er != nil && !errors.Is(er, sql.ErrTxDone) {
			return fmt.Errorf("failed to rollback withTx: %w (cause: %w)", er, err)
		}
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit withTx: %w", err)
	}
	return nil
}

func (s *Store) ProductsByID(ctx context.Context, ids []string) (map[string]orders.Product, error) {
	return productsByID(ctx, s.db, ids)
}

func (s *Store) WishlistItems(ctx context.Context, userID string) ([]orders.WishlistItem, error) {
	return wishlistItems(ctx, s.db, userID)
}

func (s *Store) UserIDByEmail(ctx context.Context, email string) (string, error) {
	var id string
	err := s.db.QueryRowContext(ctx, `SELECT id::text FROM users WHERE email = $1`, email).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return "", fmt.Errorf("user %s: %w", email, orders.ErrNotFound)
	}
	if err != nil {
		return "", fmt.Errorf("failed to query user: %w", err)
	}
	return id, nil
}

const orderColumns = `o.id::text, o.user_id::text, o.total_amount, o.status, o.created_at, o.updated_at`

func scanOrder(sc interface{ Scan(...any) error }) (orders.Order, error) {
	var (
		o      orders.Order
		userID sql.NullString
	)
	if err := sc.Scan(&o.ID, &userID, &o.TotalAmount, &o.Status, &o.CreatedAt, &o.UpdatedAt); err != nil {
		return o, err
	}
	o.UserID = nullString(userID)
	return o, nil
}

func (s *Store) GetOrder(ctx context.Context, id string) (*orders.OrderDetail, error) {
	if !validID(id) {
		return nil, orders.ErrNotFound
	}
	row := s.db.QueryRowContext(ctx, `SELECT `+orderColumns+` FROM orders o WHERE o.id = $1`, id)
	o, err := scanOrder(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, orders.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query order: %w", err)
	}
	details, err := loadDetails(ctx, s.db, []orders.Order{o})
	if err != nil {
		return nil, err
	}
	return &details[0], nil
}

var sortColumns = map[string]string{
	orders.SortByID:          "o.id",
	orders.SortByUserID:      "o.user_id",
	orders.SortByTotalAmount: "o.total_amount",
	orders.SortByStatus:      "o.status",
	orders.SortByCreatedAt:   "o.created_at",
	orders.SortByUpdatedAt:   "o.updated_at",
}

// ListOrders expects an already normalized query.
func (s *Store) ListOrders(ctx context.Context, q orders.ListQuery) ([]orders.OrderDetail, int, error) {
	col, ok := sortColumns[q.SortBy]
	if !ok {
		return nil, 0, orders.ErrInvalidSort
	}
	dir := "DESC"
	if q.SortOrder == orders.SortAsc {
		dir = "ASC"
	}

	where := ""
	var args []any
	if q.Search != "" {
		where = `WHERE o.status ILIKE $1 ESCAPE '\' OR s.name ILIKE $1 ESCAPE '\' OR s.phone ILIKE $1 ESCAPE '\'`
		args = append(args, containsPattern(q.Search))
	}
	from := `FROM orders o LEFT JOIN shipping_info s ON s.order_id = o.id ` + where

	var total int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) `+from, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("failed to count orders: %w", err)
	}

	n := len(args)
	query := fmt.Sprintf(`SELECT %s %s ORDER BY %s %s, o.id LIMIT $%d OFFSET $%d`,
		orderColumns, from, col, dir, n+1, n+2)
	rows, err := s.db.QueryContext(ctx, query, append(args, q.Limit, q.Offset())...)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to query orders: %w", err)
	}
	defer rows.Close()

	var page []orders.Order
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("failed to scan order: %w", err)
		}
		page = append(page, o)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("error iterating orders: %w", err)
	}
	if len(page) == 0 {
		return []orders.OrderDetail{}, total, nil
	}

	details, err := loadDetails(ctx, s.db, page)
	if err != nil {
		return nil, 0, err
	}
	return details, total, nil
}

// loadDetails attaches user, lines, shipping and payment rows to each order,
// one query per child table.
func loadDetails(ctx context.Context, q querier, list []orders.Order) ([]orders.OrderDetail, error) {
	details := make([]orders.OrderDetail, len(list))
	byID := make(map[string]*orders.OrderDetail, len(list))
	ids := make([]string, 0, len(list))
	var userIDs []string
	for i, o := range list {
		details[i] = orders.OrderDetail{Order: o, Items: []orders.OrderLine{}}
		byID[o.ID] = &details[i]
		ids = append(ids, o.ID)
		if o.UserID != nil {
			userIDs = append(userIDs, *o.UserID)
		}
	}

	in, args := placeholders(ids, 1)
	rows, err := q.QueryContext(ctx, `
		SELECT id::text, order_id::text, product_id::text, title, price, quantity, size, color, image
		FROM order_items WHERE order_id IN (`+in+`)
		ORDER BY order_id, id`, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query order items: %w", err)
	}
	for rows.Next() {
		var (
			l                  orders.OrderLine
			size, color, image sql.NullString
		)
		if err := rows.Scan(&l.ID, &l.OrderID, &l.ProductID, &l.Title, &l.Price, &l.Quantity, &size, &color, &image); err != nil {
			rows.Close()
			return nil, fmt.Errorf("failed to scan order item: %w", err)
		}
		l.Size, l.Color, l.Image = nullString(size), nullString(color), nullString(image)
		byID[l.OrderID].Items = append(byID[l.OrderID].Items, l)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating order items: %w", err)
	}

	rows, err = q.QueryContext(ctx, `
		SELECT id::text, order_id::text, name, phone, address, city, postal_code, country
		FROM shipping_info WHERE order_id IN (`+in+`)`, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query shipping info: %w", err)
	}
	for rows.Next() {
		var sh orders.ShippingInfo
		if err := rows.Scan(&sh.ID, &sh.OrderID, &sh.Name, &sh.Phone, &sh.Address, &sh.City, &sh.PostalCode, &sh.Country); err != nil {
			rows.Close()
			return nil, fmt.Errorf("failed to scan shipping info: %w", err)
		}
		byID[sh.OrderID].ShippingInfo = &sh
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating shipping info: %w", err)
	}

	rows, err = q.QueryContext(ctx, `SELECT `+paymentColumns+` FROM payment_info WHERE order_id IN (`+in+`)`, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query payment info: %w", err)
	}
	for rows.Next() {
		p, err := scanPayment(rows)
		if err != nil {
			rows.Close()
			return nil, fmt.Errorf("failed to scan payment info: %w", err)
		}
		byID[p.OrderID].PaymentInfo = p
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating payment info: %w", err)
	}

	if len(userIDs) == 0 {
		return details, nil
	}
	uin, uargs := placeholders(userIDs, 1)
	rows, err = q.QueryContext(ctx, `SELECT id::text, name, email FROM users WHERE id IN (`+uin+`)`, uargs...)
	if err != nil {
		return nil, fmt.Errorf("failed to query users: %w", err)
	}
	defer rows.Close()
	users := make(map[string]*orders.UserSummary)
	for rows.Next() {
		var u orders.UserSummary
		if err := rows.Scan(&u.ID, &u.Name, &u.Email); err != nil {
			return nil, fmt.Errorf("failed to scan user: %w", err)
		}
		users[u.ID] = &u
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating users: %w", err)
	}
	for i := range details {
		if uid := details[i].UserID; uid != nil {
			details[i].User = users[*uid]
		}
	}
	return details, nil
}

const paymentColumns = `id::text, order_id::text, method, status, txn_id, payment_gateway_data::text, last_event_at, created_at, updated_at`

func scanPayment(sc interface{ Scan(...any) error }) (*orders.PaymentInfo, error) {
	var (
		p      orders.PaymentInfo
		method string
		data   sql.NullString
		last   sql.NullTime
	)
	if err := sc.Scan(&p.ID, &p.OrderID, &method, &p.Status, &p.TxnID, &data, &last, &p.CreatedAt, &p.UpdatedAt); err != nil {
		return nil, err
	}
	p.Method = payments.Method(method)
	if data.Valid {
		p.GatewayData = []byte(data.String)
	}
	if last.Valid {
		t := last.Time
		p.LastEventAt = &t
	}
	return &p, nil
}

func productsByID(ctx context.Context, q querier, ids []string) (map[string]orders.Product, error) {
	out := make(map[string]orders.Product, len(ids))
	var valid []string
	for _, id := range ids {
		if validID(id) {
			valid = append(valid, id)
		}
	}
	if len(valid) == 0 {
		return out, nil
	}
	in, args := placeholders(valid, 1)
	rows, err := q.QueryContext(ctx, `
		SELECT id::text, title, price, COALESCE(images[1], ''), color
		FROM products WHERE id IN (`+in+`)`, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query products: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			p     orders.Product
			image string
			color sql.NullString
		)
		if err := rows.Scan(&p.ID, &p.Title, &p.Price, &image, &color); err != nil {
			return nil, fmt.Errorf("failed to scan product: %w", err)
		}
		if image != "" {
			p.Images = []string{image}
		}
		p.Color = nullString(color)
		out[p.ID] = p
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating products: %w", err)
	}
	return out, nil
}

func wishlistItems(ctx context.Context, q querier, userID string) ([]orders.WishlistItem, error) {
	if !validID(userID) {
		return nil, nil
	}
	rows, err := q.QueryContext(ctx, `
		SELECT id::text, user_id::text, product_id::text, size, color, quantity
		FROM wishlist_items WHERE user_id = $1
		ORDER BY created_at, id`, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to query wishlist: %w", err)
	}
	defer rows.Close()

	var items []orders.WishlistItem
	for rows.Next() {
		var (
			w           orders.WishlistItem
			size, color sql.NullString
		)
		if err := rows.Scan(&w.ID, &w.UserID, &w.ProductID, &size, &color, &w.Quantity); err != nil {
			return nil, fmt.Errorf("failed to scan wishlist item: %w", err)
		}
		w.Size, w.Color = nullString(size), nullString(color)
		items = append(items, w)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating wishlist: %w", err)
	}
	return items, nil
}

// Tx implements orders.Tx on a single *sql.Tx.
type Tx struct {
	tx *sql.Tx
}

func (t *Tx) ProductsByID(ctx context.Context, ids []string) (map[string]orders.Product, error) {
	return productsByID(ctx, t.tx, ids)
}

func (t *Tx) WishlistItems(ctx context.Context, userID string) ([]orders.WishlistItem, error) {
	return wishlistItems(ctx, t.tx, userID)
}

func (t *Tx) InsertOrder(ctx context.Context, o *orders.Order) error {
	_, err := t.tx.ExecContext(ctx, `
		INSERT INTO orders (id, user_id, total_amount, status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6)`,
		o.ID, o.UserID, o.TotalAmount, string(o.Status), o.CreatedAt, o.UpdatedAt)
	return err
}

// InsertOrderLines writes every line in one multi-row statement.
func (t *Tx) InsertOrderLines(ctx context.Context, lines []orders.OrderLine) error {
	if len(lines) == 0 {
		return nil
	}
	const cols = 9
	values := make([]string, 0, len(lines))
	args := make([]any, 0, len(lines)*cols)
	for i, l := range lines {
		base := i * cols
		ph := make([]string, cols)
		for j := range ph {
			ph[j] = fmt.Sprintf("$%d", base+j+1)
		}
		values = append(values, "("+strings.Join(ph, ", ")+")")
		args = append(args, l.ID, l.OrderID, l.ProductID, l.Title, l.Price, l.Quantity, l.Size, l.Color, l.Image)
	}
	_, err := t.tx.ExecContext(ctx, `
		INSERT INTO order_items (id, order_id, product_id, title, price, quantity, size, color, image)
		VALUES `+strings.Join(values, ", "), args...)
	return err
}

func (t *Tx) InsertShippingInfo(ctx context.Context, s *orders.ShippingInfo) error {
	_, err := t.tx.ExecContext(ctx, `
		INSERT INTO shipping_info (id, order_id, name, phone, address, city, postal_code, country)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		s.ID, s.OrderID, s.Name, s.Phone, s.Address, s.City, s.PostalCode, s.Country)
	return err
}

func (t *Tx) InsertPaymentInfo(ctx context.Context, p *orders.PaymentInfo) error {
	_, err := t.tx.ExecContext(ctx, `
		INSERT INTO payment_info (id, order_id, method, status, txn_id, payment_gateway_data, last_event_at, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		p.ID, p.OrderID, string(p.Method), string(p.Status), p.TxnID, jsonb(p.GatewayData), p.LastEventAt, p.CreatedAt, p.UpdatedAt)
	return err
}

func (t *Tx) DeleteWishlistItems(ctx context.Context, userID string, ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	in, args := placeholders(ids, 2)
	_, err := t.tx.ExecContext(ctx,
		`DELETE FROM wishlist_items WHERE user_id = $1 AND id IN (`+in+`)`,
		append([]any{userID}, args...)...)
	return err
}

func (t *Tx) OrderForUpdate(ctx context.Context, id string) (*orders.Order, error) {
	if !validID(id) {
		return nil, orders.ErrNotFound
	}
	row := t.tx.QueryRowContext(ctx, `SELECT `+orderColumns+` FROM orders o WHERE o.id = $1 FOR UPDATE`, id)
	o, err := scanOrder(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, orders.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to lock order: %w", err)
	}
	return &o, nil
}

func (t *Tx) PaymentForUpdate(ctx context.Context, orderID string) (*orders.PaymentInfo, error) {
	if !validID(orderID) {
		return nil, orders.ErrNotFound
	}
	row := t.tx.QueryRowContext(ctx, `SELECT `+paymentColumns+` FROM payment_info WHERE order_id = $1 FOR UPDATE`, orderID)
	p, err := scanPayment(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, orders.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to lock payment info: %w", err)
	}
	return p, nil
}

func (t *Tx) UpdateOrderStatus(ctx context.Context, id string, status orders.Status, at time.Time) error {
	if !validID(id) {
		return orders.ErrNotFound
	}
	res, err := t.tx.ExecContext(ctx, `UPDATE orders SET status = $1, updated_at = $2 WHERE id = $3`, string(status), at, id)
	if err != nil {
		return err
	}
	return expectRow(res)
}

func (t *Tx) UpdatePaymentInfo(ctx context.Context, p *orders.PaymentInfo) error {
	res, err := t.tx.ExecContext(ctx, `
		UPDATE payment_info
		SET status = $1, txn_id = $2, payment_gateway_data = $3, last_event_at = $4, updated_at = $5
		WHERE id = $6`,
		string(p.Status), p.TxnID, jsonb(p.GatewayData), p.LastEventAt, p.UpdatedAt, p.ID)
	if err != nil {
		return err
	}
	return expectRow(res)
}

// DeleteOrder removes dependents first so it does not rely on ON DELETE CASCADE.
func (t *Tx) DeleteOrder(ctx context.Context, id string) error {
	if !validID(id) {
		return orders.ErrNotFound
	}
	for _, table := range []string{"order_items", "shipping_info", "payment_info"} {
		if _, err := t.tx.ExecContext(ctx, `DELETE FROM `+table+` WHERE order_id = $1`, id); err != nil {
			return fmt.Errorf("failed to delete from %s: %w", table, err)
		}
	}
	res, err := t.tx.ExecContext(ctx, `DELETE FROM orders WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete order: %w", err)
	}
	return expectRow(res)
}

func expectRow(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return orders.ErrNotFound
	}
	return nil
}

// placeholders renders "$start, $start+1, ..." for an IN list.
func placeholders(vals []string, start int) (string, []any) {
	ph := make([]string, len(vals))
	args := make([]any, len(vals))
	for i, v := range vals {
		ph[i] = fmt.Sprintf("$%d", start+i)
		args[i] = v
	}
	return strings.Join(ph, ", "), args
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

// containsPattern builds a LIKE pattern matching term as a literal substring.
func containsPattern(term string) string {
	return "%" + likeEscaper.Replace(term) + "%"
}

// validID reports whether id can be compared against a uuid column. Anything
// else cannot match a row.
func validID(id string) bool {
	return uuid.Validate(id) == nil
}

func nullString(ns sql.NullString) *string {
	if !ns.Valid {
		return nil
	}
	s := ns.String
	return &s
}

func jsonb(raw []byte) any {
	if len(raw) == 0 {
		return nil
	}
	return string(raw)
}
