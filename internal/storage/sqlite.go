package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"budgetcal/internal/core"

	"github.com/shopspring/decimal"
	_ "modernc.org/sqlite"
)

type SQLiteRepository struct {
	db *sql.DB
}

var _ Repository = (*SQLiteRepository)(nil)

func NewSQLiteRepository(dbPath string) (*SQLiteRepository, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath+"?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}
	// SQLite allows a single writer; one connection avoids SQLITE_BUSY.
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if err := RunMigrations(dbPath); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &SQLiteRepository{db: db}, nil
}

func (r *SQLiteRepository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

func (r *SQLiteRepository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

// Account

const getAccount = `SELECT id, name, starting_balance FROM account WHERE id = 1`

const upsertAccount = `
INSERT INTO account (id, name, starting_balance) VALUES (1, ?, ?)
ON CONFLICT(id) DO UPDATE SET
    name = excluded.name,
    starting_balance = excluded.starting_balance,
    updated_at = CURRENT_TIMESTAMP`

func (r *SQLiteRepository) GetAccount(ctx context.Context) (core.Account, error) {
	var (
		a       core.Account
		balance string
	)
	err := r.db.QueryRowContext(ctx, getAccount).Scan(&a.ID, &a.Name, &balance)
	if err != nil {
		return core.Account{}, notFound(err, "get account")
	}
	if a.StartingBalance, err = decimal.NewFromString(balance); err != nil {
		return core.Account{}, fmt.Errorf("parse starting balance: %w", err)
	}
	return a, nil
}

func (r *SQLiteRepository) SaveAccount(ctx context.Context, a core.Account) (core.Account, error) {
	if _, err := r.db.ExecContext(ctx, upsertAccount, a.Name, a.StartingBalance.String()); err != nil {
		return core.Account{}, fmt.Errorf("save account: %w", err)
	}
	return r.GetAccount(ctx)
}

// Templates

const templateColumns = `id, name, amount, recurrence_type, day_of_month, day_of_week, bi_weekly_start_date, kind, active`

const insertTemplate = `
INSERT INTO templates (name, amount, recurrence_type, day_of_month, day_of_week, bi_weekly_start_date, kind, active)
VALUES (?, ?, ?, ?, ?, ?, ?, ?)`

const updateTemplate = `
UPDATE templates SET
    name = ?, amount = ?, recurrence_type = ?, day_of_month = ?, day_of_week = ?,
    bi_weekly_start_date = ?, kind = ?, active = ?, updated_at = CURRENT_TIMESTAMP
WHERE id = ? AND deleted_at IS NULL`

func (r *SQLiteRepository) ListTemplates(ctx context.Context, activeOnly bool) ([]core.ExpenseTemplate, error) {
	query := `SELECT ` + templateColumns + ` FROM templates WHERE deleted_at IS NULL`
	if activeOnly {
		query += ` AND active = 1`
	}
	query += ` ORDER BY name, id`

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list templates: %w", err)
	}
	defer rows.Close()

	out := []core.ExpenseTemplate{}
	for rows.Next() {
		t, err := scanTemplate(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

func (r *SQLiteRepository) GetTemplate(ctx context.Context, id int64) (core.ExpenseTemplate, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+templateColumns+` FROM templates WHERE id = ? AND deleted_at IS NULL`, id)
	t, err := scanTemplate(row)
	if err != nil {
		return core.ExpenseTemplate{}, notFound(err, "get template")
	}
	return t, nil
}

func (r *SQLiteRepository) CreateTemplate(ctx context.Context, t core.ExpenseTemplate) (core.ExpenseTemplate, error) {
	res, err := r.db.ExecContext(ctx, insertTemplate, templateArgs(t)...)
	if err != nil {
		return core.ExpenseTemplate{}, fmt.Errorf("create template: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return core.ExpenseTemplate{}, fmt.Errorf("template id: %w", err)
	}
	slog.InfoContext(ctx, "Template saved to SQLite", "id", id, "name", t.Name, "recurrence", t.RecurrenceType)
	return r.GetTemplate(ctx, id)
}

func (r *SQLiteRepository) UpdateTemplate(ctx context.Context, t core.ExpenseTemplate) (core.ExpenseTemplate, error) {
	args := append(templateArgs(t), t.ID)
	if err := r.execOne(ctx, "update template", updateTemplate, args...); err != nil {
		return core.ExpenseTemplate{}, err
	}
	return r.GetTemplate(ctx, t.ID)
}

func (r *SQLiteRepository) DeleteTemplate(ctx context.Context, id int64) error {
	return r.execOne(ctx, "delete template",
		`UPDATE templates SET deleted_at = CURRENT_TIMESTAMP, active = 0 WHERE id = ? AND deleted_at IS NULL`, id)
}

func templateArgs(t core.ExpenseTemplate) []any {
	var biWeekly sql.NullString
	if t.BiWeeklyStartDate != "" {
		biWeekly = sql.NullString{String: t.BiWeeklyStartDate, Valid: true}
	}
	return []any{
		t.Name, t.Amount.String(), string(t.RecurrenceType),
		nullInt(t.DayOfMonth), nullInt(t.DayOfWeek), biWeekly,
		string(t.Kind), t.Active,
	}
}

type scanner interface {
	Scan(dest ...any) error
}

func scanTemplate(s scanner) (core.ExpenseTemplate, error) {
	var (
		t          core.ExpenseTemplate
		amount     string
		recurrence string
		kind       string
		dom, dow   sql.NullInt64
		biWeekly   sql.NullString
	)
	if err := s.Scan(&t.ID, &t.Name, &amount, &recurrence, &dom, &dow, &biWeekly, &kind, &t.Active); err != nil {
		return core.ExpenseTemplate{}, err
	}
	var err error
	if t.Amount, err = decimal.NewFromString(amount); err != nil {
		return core.ExpenseTemplate{}, fmt.Errorf("parse template amount: %w", err)
	}
	t.RecurrenceType = core.RecurrenceType(recurrence)
	t.Kind = core.TemplateKind(kind)
	t.DayOfMonth = intPtr(dom)
	t.DayOfWeek = intPtr(dow)
	t.BiWeeklyStartDate = biWeekly.String
	return t, nil
}

// Scheduled transactions. Expenses and income share one table shape, so the
// queries are built per table name.

type txTable string

const (
	expensesTable txTable = "expenses"
	incomeTable   txTable = "income"
)

type txRow struct {
	ID            int64
	Name          string
	Amount        decimal.Decimal
	ScheduledDate string
	Year, Month   int
	TemplateID    sql.NullInt64
}

func (r *SQLiteRepository) insertTx(ctx context.Context, table txTable, row txRow, origin *Origin) (int64, error) {
	var tmpl sql.NullInt64
	var originDate sql.NullString
	if origin != nil {
		tmpl = sql.NullInt64{Int64: origin.TemplateID, Valid: true}
		originDate = sql.NullString{String: origin.Date, Valid: origin.Date != ""}
	}
	res, err := r.db.ExecContext(ctx,
		`INSERT INTO `+string(table)+` (name, amount, scheduled_date, year_value, month_value, template_id, origin_date)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		row.Name, row.Amount.String(), row.ScheduledDate, row.Year, row.Month, tmpl, originDate)
	if err != nil {
		return 0, fmt.Errorf("insert %s: %w", table, err)
	}
	return res.LastInsertId()
}

func (r *SQLiteRepository) getTx(ctx context.Context, table txTable, id int64) (txRow, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT id, name, amount, scheduled_date, year_value, month_value, template_id
		 FROM `+string(table)+` WHERE id = ? AND deleted_at IS NULL`, id)
	tx, err := scanTx(row)
	if err != nil {
		return txRow{}, notFound(err, "get "+string(table))
	}
	return tx, nil
}

func (r *SQLiteRepository) listTx(ctx context.Context, table txTable, year, month int) ([]txRow, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, name, amount, scheduled_date, year_value, month_value, template_id
		 FROM `+string(table)+`
		 WHERE year_value = ? AND month_value = ? AND deleted_at IS NULL
		 ORDER BY scheduled_date, id`, year, month)
	if err != nil {
		return nil, fmt.Errorf("list %s: %w", table, err)
	}
	defer rows.Close()

	var out []txRow
	for rows.Next() {
		tx, err := scanTx(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, tx)
	}
	return out, rows.Err()
}

func (r *SQLiteRepository) updateTx(ctx context.Context, table txTable, row txRow) error {
	return r.execOne(ctx, "update "+string(table),
		`UPDATE `+string(table)+` SET name = ?, amount = ?, scheduled_date = ?, year_value = ?, month_value = ?,
		 updated_at = CURRENT_TIMESTAMP WHERE id = ? AND deleted_at IS NULL`,
		row.Name, row.Amount.String(), row.ScheduledDate, row.Year, row.Month, row.ID)
}

func (r *SQLiteRepository) moveTx(ctx context.Context, table txTable, id int64, dateKey string) error {
	y, m, err := core.YearMonthOf(dateKey)
	if err != nil {
		return err
	}
	return r.execOne(ctx, "move "+string(table),
		`UPDATE `+string(table)+` SET scheduled_date = ?, year_value = ?, month_value = ?,
		 updated_at = CURRENT_TIMESTAMP WHERE id = ? AND deleted_at IS NULL`,
		dateKey, y, m, id)
}

func (r *SQLiteRepository) deleteTx(ctx context.Context, table txTable, id int64) error {
	return r.execOne(ctx, "delete "+string(table),
		`UPDATE `+string(table)+` SET deleted_at = CURRENT_TIMESTAMP WHERE id = ? AND deleted_at IS NULL`, id)
}

// sumBefore adds amounts in Go; SQLite would sum the TEXT column as REAL.
func (r *SQLiteRepository) sumBefore(ctx context.Context, table txTable, dateKey string) (decimal.Decimal, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT amount FROM `+string(table)+` WHERE scheduled_date < ? AND deleted_at IS NULL`, dateKey)
	if err != nil {
		return decimal.Zero, fmt.Errorf("sum %s: %w", table, err)
	}
	defer rows.Close()

	total := decimal.Zero
	for rows.Next() {
		var amount string
		if err := rows.Scan(&amount); err != nil {
			return decimal.Zero, fmt.Errorf("scan %s amount: %w", table, err)
		}
		d, err := decimal.NewFromString(amount)
		if err != nil {
			return decimal.Zero, fmt.Errorf("parse %s amount: %w", table, err)
		}
		total = total.Add(d)
	}
	return total, rows.Err()
}

func scanTx(s scanner) (txRow, error) {
	var (
		tx     txRow
		amount string
	)
	if err := s.Scan(&tx.ID, &tx.Name, &amount, &tx.ScheduledDate, &tx.Year, &tx.Month, &tx.TemplateID); err != nil {
		return txRow{}, err
	}
	var err error
	if tx.Amount, err = decimal.NewFromString(amount); err != nil {
		return txRow{}, fmt.Errorf("parse amount: %w", err)
	}
	return tx, nil
}

func (r *SQLiteRepository) toExpense(ctx context.Context, tx txRow) (core.ScheduledExpense, error) {
	e := core.ScheduledExpense{
		ID: tx.ID, Name: tx.Name, Amount: tx.Amount,
		ScheduledDate: tx.ScheduledDate, YearValue: tx.Year, MonthValue: tx.Month,
	}
	if tx.TemplateID.Valid {
		t, err := r.GetTemplate(ctx, tx.TemplateID.Int64)
		switch {
		case err == nil:
			e.Template = &t
		case !errors.Is(err, ErrNotFound):
			return core.ScheduledExpense{}, err
		}
	}
	return e, nil
}

func toIncome(tx txRow) core.ScheduledIncome {
	return core.ScheduledIncome{
		ID: tx.ID, Name: tx.Name, Amount: tx.Amount,
		ScheduledDate: tx.ScheduledDate, YearValue: tx.Year, MonthValue: tx.Month,
	}
}

// Expenses

func (r *SQLiteRepository) CreateExpense(ctx context.Context, e core.ScheduledExpense, origin *Origin) (core.ScheduledExpense, error) {
	id, err := r.insertTx(ctx, expensesTable, txRow{
		Name: e.Name, Amount: e.Amount, ScheduledDate: e.ScheduledDate, Year: e.YearValue, Month: e.MonthValue,
	}, origin)
	if err != nil {
		return core.ScheduledExpense{}, err
	}
	slog.InfoContext(ctx, "Expense saved to SQLite", "id", id, "name", e.Name, "date", e.ScheduledDate)
	return r.GetExpense(ctx, id)
}

func (r *SQLiteRepository) GetExpense(ctx context.Context, id int64) (core.ScheduledExpense, error) {
	tx, err := r.getTx(ctx, expensesTable, id)
	if err != nil {
		return core.ScheduledExpense{}, err
	}
	return r.toExpense(ctx, tx)
}

func (r *SQLiteRepository) ListExpenses(ctx context.Context, year, month int) ([]core.ScheduledExpense, error) {
	rows, err := r.listTx(ctx, expensesTable, year, month)
	if err != nil {
		return nil, err
	}
	templates := map[int64]*core.ExpenseTemplate{}
	out := make([]core.ScheduledExpense, 0, len(rows))
	for _, tx := range rows {
		e := core.ScheduledExpense{
			ID: tx.ID, Name: tx.Name, Amount: tx.Amount,
			ScheduledDate: tx.ScheduledDate, YearValue: tx.Year, MonthValue: tx.Month,
		}
		if tx.TemplateID.Valid {
			t, ok := templates[tx.TemplateID.Int64]
			if !ok {
				got, err := r.GetTemplate(ctx, tx.TemplateID.Int64)
				if err != nil && !errors.Is(err, ErrNotFound) {
					return nil, err
				}
				if err == nil {
					t = &got
				}
				templates[tx.TemplateID.Int64] = t
			}
			e.Template = t
		}
		out = append(out, e)
	}
	return out, nil
}

func (r *SQLiteRepository) UpdateExpense(ctx context.Context, e core.ScheduledExpense) (core.ScheduledExpense, error) {
	if err := r.updateTx(ctx, expensesTable, txRow{
		ID: e.ID, Name: e.Name, Amount: e.Amount, ScheduledDate: e.ScheduledDate, Year: e.YearValue, Month: e.MonthValue,
	}); err != nil {
		return core.ScheduledExpense{}, err
	}
	return r.GetExpense(ctx, e.ID)
}

func (r *SQLiteRepository) MoveExpense(ctx context.Context, id int64, dateKey string) (core.ScheduledExpense, error) {
	if err := r.moveTx(ctx, expensesTable, id, dateKey); err != nil {
		return core.ScheduledExpense{}, err
	}
	return r.GetExpense(ctx, id)
}

func (r *SQLiteRepository) DeleteExpense(ctx context.Context, id int64) error {
	return r.deleteTx(ctx, expensesTable, id)
}

func (r *SQLiteRepository) SumExpensesBefore(ctx context.Context, dateKey string) (decimal.Decimal, error) {
	return r.sumBefore(ctx, expensesTable, dateKey)
}

// Income

func (r *SQLiteRepository) CreateIncome(ctx context.Context, i core.ScheduledIncome, origin *Origin) (core.ScheduledIncome, error) {
	id, err := r.insertTx(ctx, incomeTable, txRow{
		Name: i.Name, Amount: i.Amount, ScheduledDate: i.ScheduledDate, Year: i.YearValue, Month: i.MonthValue,
	}, origin)
	if err != nil {
		return core.ScheduledIncome{}, err
	}
	slog.InfoContext(ctx, "Income saved to SQLite", "id", id, "name", i.Name, "date", i.ScheduledDate)
	return r.GetIncome(ctx, id)
}

func (r *SQLiteRepository) GetIncome(ctx context.Context, id int64) (core.ScheduledIncome, error) {
	tx, err := r.getTx(ctx, incomeTable, id)
	if err != nil {
		return core.ScheduledIncome{}, err
	}
	return toIncome(tx), nil
}

func (r *SQLiteRepository) ListIncome(ctx context.Context, year, month int) ([]core.ScheduledIncome, error) {
	rows, err := r.listTx(ctx, incomeTable, year, month)
	if err != nil {
		return nil, err
	}
	out := make([]core.ScheduledIncome, 0, len(rows))
	for _, tx := range rows {
		out = append(out, toIncome(tx))
	}
	return out, nil
}

func (r *SQLiteRepository) UpdateIncome(ctx context.Context, i core.ScheduledIncome) (core.ScheduledIncome, error) {
	if err := r.updateTx(ctx, incomeTable, txRow{
		ID: i.ID, Name: i.Name, Amount: i.Amount, ScheduledDate: i.ScheduledDate, Year: i.YearValue, Month: i.MonthValue,
	}); err != nil {
		return core.ScheduledIncome{}, err
	}
	return r.GetIncome(ctx, i.ID)
}

func (r *SQLiteRepository) MoveIncome(ctx context.Context, id int64, dateKey string) (core.ScheduledIncome, error) {
	if err := r.moveTx(ctx, incomeTable, id, dateKey); err != nil {
		return core.ScheduledIncome{}, err
	}
	return r.GetIncome(ctx, id)
}

func (r *SQLiteRepository) DeleteIncome(ctx context.Context, id int64) error {
	return r.deleteTx(ctx, incomeTable, id)
}

func (r *SQLiteRepository) SumIncomeBefore(ctx context.Context, dateKey string) (decimal.Decimal, error) {
	return r.sumBefore(ctx, incomeTable, dateKey)
}

// Template instances

func (r *SQLiteRepository) HasTemplateInstances(ctx context.Context, templateID int64, year, month int) (bool, error) {
	var exists bool
	err := r.db.QueryRowContext(ctx, `
SELECT EXISTS (
    SELECT 1 FROM expenses WHERE template_id = ?1 AND year_value = ?2 AND month_value = ?3 AND deleted_at IS NULL
    UNION ALL
    SELECT 1 FROM income WHERE template_id = ?1 AND year_value = ?2 AND month_value = ?3 AND deleted_at IS NULL
)`, templateID, year, month).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check template instances: %w", err)
	}
	return exists, nil
}

func (r *SQLiteRepository) InstanceExists(ctx context.Context, templateID int64, originDate string) (bool, error) {
	var exists bool
	err := r.db.QueryRowContext(ctx, `
SELECT EXISTS (
    SELECT 1 FROM expenses WHERE template_id = ?1 AND origin_date = ?2
    UNION ALL
    SELECT 1 FROM income WHERE template_id = ?1 AND origin_date = ?2
)`, templateID, originDate).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check instance: %w", err)
	}
	return exists, nil
}

func (r *SQLiteRepository) DeleteFutureInstances(ctx context.Context, templateID int64, fromDate string) (int64, error) {
	var total int64
	for _, table := range []txTable{expensesTable, incomeTable} {
		res, err := r.db.ExecContext(ctx,
			`UPDATE `+string(table)+` SET deleted_at = CURRENT_TIMESTAMP
			 WHERE template_id = ? AND scheduled_date >= ? AND deleted_at IS NULL`, templateID, fromDate)
		if err != nil {
			return total, fmt.Errorf("delete future %s: %w", table, err)
		}
		n, _ := res.RowsAffected()
		total += n
	}
	return total, nil
}

func (r *SQLiteRepository) ReleaseFutureInstances(ctx context.Context, templateID int64, fromDate string) (int64, error) {
	var total int64
	for _, table := range []txTable{expensesTable, incomeTable} {
		res, err := r.db.ExecContext(ctx,
			`UPDATE `+string(table)+` SET deleted_at = COALESCE(deleted_at, CURRENT_TIMESTAMP),
			     origin_date = NULL, updated_at = CURRENT_TIMESTAMP
			 WHERE template_id = ? AND origin_date >= ?`, templateID, fromDate)
		if err != nil {
			return total, fmt.Errorf("release future %s: %w", table, err)
		}
		n, _ := res.RowsAffected()
		total += n
	}
	return total, nil
}

func (r *SQLiteRepository) UpdateFutureInstances(ctx context.Context, t core.ExpenseTemplate, fromDate string) (int64, error) {
	var total int64
	for _, table := range []txTable{expensesTable, incomeTable} {
		res, err := r.db.ExecContext(ctx,
			`UPDATE `+string(table)+` SET name = ?, amount = ?, updated_at = CURRENT_TIMESTAMP
			 WHERE template_id = ? AND scheduled_date >= ? AND deleted_at IS NULL`,
			t.Name, t.Amount.String(), t.ID, fromDate)
		if err != nil {
			return total, fmt.Errorf("update future %s: %w", table, err)
		}
		n, _ := res.RowsAffected()
		total += n
	}
	return total, nil
}

func (r *SQLiteRepository) execOne(ctx context.Context, op, query string, args ...any) error {
	res, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if n == 0 {
		return fmt.Errorf("%s: %w", op, ErrNotFound)
	}
	return nil
}

func notFound(err error, op string) error {
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("%s: %w", op, ErrNotFound)
	}
	return fmt.Errorf("%s: %w", op, err)
}

func nullInt(p *int) sql.NullInt64 {
	if p == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: int64(*p), Valid: true}
}

func intPtr(n sql.NullInt64) *int {
	if !n.Valid {
		return nil
	}
	v := int(n.Int64)
	return &v
}
