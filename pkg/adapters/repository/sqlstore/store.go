// Package sqlstore is the Link Store shared by the database/sql backends.
// Queries are built with squirrel; a Dialect supplies placeholders and
// constraint error detection.
package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	sq "github.com/Masterminds/squirrel"

	"github.com/wadjakorntonsri/trimrr/pkg/core/domain"
	"github.com/wadjakorntonsri/trimrr/pkg/ports"
)

const errOpFmt = "%s: %s: %w"

type Store struct {
	db      *sql.DB
	dialect Dialect
}

var _ ports.Repository = (*Store)(nil)

func New(db *sql.DB, dialect Dialect) *Store {
	if dialect.Placeholder == nil {
		dialect.Placeholder = sq.Question
	}
	if dialect.IsUniqueViolation == nil {
		dialect.IsUniqueViolation = func(error) bool { return false }
	}
	if dialect.IsForeignKeyViolation == nil {
		dialect.IsForeignKeyViolation = func(error) bool { return false }
	}
	return &Store{db: db, dialect: dialect}
}

// DB exposes the pool for health checks.
func (s *Store) DB() *sql.DB { return s.db }

func (s *Store) Close() error { return s.db.Close() }

func (s *Store) wrap(op string, err error) error {
	return fmt.Errorf(errOpFmt, s.dialect.Name, op, err)
}

// Create inserts the link. The UNIQUE(identifier) constraint is the only
// uniqueness check; a violation becomes domain.ErrDuplicateKey.
func (s *Store) Create(ctx context.Context, link *domain.Link) error {
	query, args, err := sq.Insert(sqlTableLinks).
		Columns(
			sqlColOwnerID,
			sqlColTitle,
			sqlColDestinationURL,
			sqlColIdentifier,
			sqlColShortCode,
			sqlColCustomAlias,
			sqlColQRAssetRef,
			sqlColCreatedAt,
		).
		Values(
			link.OwnerID,
			link.Title,
			link.DestinationURL,
			link.Identifier(),
			link.ShortCode,
			link.CustomAlias,
			link.QRAssetRef,
			link.CreatedAt.UTC(),
		).
		Suffix("RETURNING " + sqlColID).
		PlaceholderFormat(s.dialect.Placeholder).
		ToSql()
	if err != nil {
		return s.wrap("build create link", err)
	}

	if err := s.db.QueryRowContext(ctx, query, args...).Scan(&link.ID); err != nil {
		if s.dialect.IsUniqueViolation(err) {
			return domain.ErrDuplicateKey
		}
		return s.wrap("create link", err)
	}

	return nil
}

func (s *Store) GetByIdentifier(ctx context.Context, identifier string) (*domain.Link, error) {
	return s.getOne(ctx, sq.Eq{sqlColIdentifier: identifier}, "get link by identifier")
}

func (s *Store) GetByID(ctx context.Context, id int64) (*domain.Link, error) {
	return s.getOne(ctx, sq.Eq{sqlColID: id}, "get link by id")
}

func (s *Store) getOne(ctx context.Context, where sq.Eq, op string) (*domain.Link, error) {
	query, args, err := sq.Select(sqlLinkCols...).
		From(sqlTableLinks).
		Where(where).
		Limit(1).
		PlaceholderFormat(s.dialect.Placeholder).
		ToSql()
	if err != nil {
		return nil, s.wrap("build "+op, err)
	}

	link, err := scanLink(s.db.QueryRowContext(ctx, query, args...))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, s.wrap(op, err)
	}

	return link, nil
}

// ListByOwner returns the owner's links, newest first. A title filter is
// matched as a case-insensitive substring with LIKE wildcards taken literally.
func (s *Store) ListByOwner(ctx context.Context, ownerID string, filter domain.LinkFilter) ([]domain.Link, error) {
	where := sq.And{sq.Eq{sqlColOwnerID: ownerID}}
	if filter.Title != "" {
		where = append(where, sq.Expr("LOWER("+sqlColTitle+") LIKE ? ESCAPE '\\'", likeContains(filter.Title)))
	}
	return s.listLinks(ctx, where, sqlColCreatedAt+" DESC, "+sqlColID+" DESC", "list links by owner")
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

func likeContains(q string) string {
	return "%" + likeEscaper.Replace(strings.ToLower(q)) + "%"
}

// Dump returns every link, oldest first.
func (s *Store) Dump(ctx context.Context) ([]domain.Link, error) {
	return s.listLinks(ctx, nil, sqlColID+" ASC", "dump links")
}

func (s *Store) listLinks(ctx context.Context, where sq.Sqlizer, orderBy, op string) ([]domain.Link, error) {
	builder := sq.Select(sqlLinkCols...).
		From(sqlTableLinks).
		OrderBy(orderBy).
		PlaceholderFormat(s.dialect.Placeholder)
	if where != nil {
		builder = builder.Where(where)
	}

	query, args, err := builder.ToSql()
	if err != nil {
		return nil, s.wrap("build "+op, err)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, s.wrap(op, err)
	}
	defer func() {
		_ = rows.Close()
	}()

	out := make([]domain.Link, 0)
	for rows.Next() {
		link, err := scanLink(rows)
		if err != nil {
			return nil, s.wrap(op, err)
		}
		out = append(out, *link)
	}

	if err := rows.Err(); err != nil {
		return nil, s.wrap(op, err)
	}

	return out, nil
}

// Delete checks ownership and removes the link with its clicks in one
// transaction.
func (s *Store) Delete(ctx context.Context, linkID int64, ownerID string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return s.wrap("begin delete", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	ownerQuery := sq.Select(sqlColOwnerID).
		From(sqlTableLinks).
		Where(sq.Eq{sqlColID: linkID}).
		PlaceholderFormat(s.dialect.Placeholder)
	if s.dialect.LockRows {
		ownerQuery = ownerQuery.Suffix("FOR UPDATE")
	}

	query, args, err := ownerQuery.ToSql()
	if err != nil {
		return s.wrap("build delete owner check", err)
	}

	var currentOwner string
	if err := tx.QueryRowContext(ctx, query, args...).Scan(&currentOwner); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.ErrNotFound
		}
		return s.wrap("delete owner check", err)
	}
	if currentOwner != ownerID {
		return domain.ErrUnauthorized
	}

	query, args, err = sq.Delete(sqlTableClicks).
		Where(sq.Eq{sqlColLinkID: linkID}).
		PlaceholderFormat(s.dialect.Placeholder).
		ToSql()
	if err != nil {
		return s.wrap("build delete clicks", err)
	}
	if _, err := tx.ExecContext(ctx, query, args...); err != nil {
		return s.wrap("delete clicks", err)
	}

	query, args, err = sq.Delete(sqlTableLinks).
		Where(sq.Eq{sqlColID: linkID}).
		PlaceholderFormat(s.dialect.Placeholder).
		ToSql()
	if err != nil {
		return s.wrap("build delete link", err)
	}
	if _, err := tx.ExecContext(ctx, query, args...); err != nil {
		return s.wrap("delete link", err)
	}

	if err := tx.Commit(); err != nil {
		return s.wrap("commit delete", err)
	}

	return nil
}

// RecordClick appends one event. The foreign key on link_id rejects events
// for links deleted after they were resolved.
func (s *Store) RecordClick(ctx context.Context, click *domain.ClickEvent) error {
	var city, country sql.NullString
	if click.Location != nil {
		city = sql.NullString{String: click.Location.City, Valid: true}
		country = sql.NullString{String: click.Location.Country, Valid: true}
	}

	query, args, err := sq.Insert(sqlTableClicks).
		Columns(
			sqlColLinkID,
			sqlColOccurredAt,
			sqlColDevice,
			sqlColCity,
			sqlColCountry,
			sqlColUserAgent,
			sqlColClientID,
			sqlColReferer,
		).
		Values(
			click.LinkID,
			click.OccurredAt.UTC(),
			string(click.Device),
			city,
			country,
			click.RawUserAgent,
			click.ClientID,
			click.Referer,
		).
		Suffix("RETURNING " + sqlColID).
		PlaceholderFormat(s.dialect.Placeholder).
		ToSql()
	if err != nil {
		return s.wrap("build record click", err)
	}

	if err := s.db.QueryRowContext(ctx, query, args...).Scan(&click.ID); err != nil {
		if s.dialect.IsForeignKeyViolation(err) {
			return domain.ErrNotFound
		}
		return s.wrap("record click", err)
	}

	return nil
}

// CountClicksByOwner counts clicks across every link the owner holds.
func (s *Store) CountClicksByOwner(ctx context.Context, ownerID string) (int, error) {
	query, args, err := sq.Select("COUNT(*)").
		From(sqlTableClicks + " c").
		Join(sqlTableLinks + " l ON l." + sqlColID + " = c." + sqlColLinkID).
		Where(sq.Eq{"l." + sqlColOwnerID: ownerID}).
		PlaceholderFormat(s.dialect.Placeholder).
		ToSql()
	if err != nil {
		return 0, s.wrap("build count clicks by owner", err)
	}

	var n int
	if err := s.db.QueryRowContext(ctx, query, args...).Scan(&n); err != nil {
		return 0, s.wrap("count clicks by owner", err)
	}
	return n, nil
}

// ListClicks returns the events of a link, newest first.
func (s *Store) ListClicks(ctx context.Context, linkID int64) ([]domain.ClickEvent, error) {
	query, args, err := sq.Select(sqlClickCols...).
		From(sqlTableClicks).
		Where(sq.Eq{sqlColLinkID: linkID}).
		OrderBy(sqlColOccurredAt+" DESC", sqlColID+" DESC").
		PlaceholderFormat(s.dialect.Placeholder).
		ToSql()
	if err != nil {
		return nil, s.wrap("build list clicks", err)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, s.wrap("list clicks", err)
	}
	defer func() {
		_ = rows.Close()
	}()

	out := make([]domain.ClickEvent, 0)
	for rows.Next() {
		var (
			ev            domain.ClickEvent
			device        string
			city, country sql.NullString
		)
		if err := rows.Scan(
			&ev.ID,
			&ev.LinkID,
			&ev.OccurredAt,
			&device,
			&city,
			&country,
			&ev.RawUserAgent,
			&ev.ClientID,
			&ev.Referer,
		); err != nil {
			return nil, s.wrap("list clicks", err)
		}

		ev.Device = domain.DeviceCategory(device)
		if city.Valid || country.Valid {
			ev.Location = &domain.Location{City: city.String, Country: country.String}
		}
		out = append(out, ev)
	}

	if err := rows.Err(); err != nil {
		return nil, s.wrap("list clicks", err)
	}

	return out, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanLink(row rowScanner) (*domain.Link, error) {
	var link domain.Link
	if err := row.Scan(
		&link.ID,
		&link.OwnerID,
		&link.Title,
		&link.DestinationURL,
		&link.ShortCode,
		&link.CustomAlias,
		&link.QRAssetRef,
		&link.CreatedAt,
	); err != nil {
		return nil, err
	}
	link.CreatedAt = link.CreatedAt.UTC()
	return &link, nil
}
