package database

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"strings"

	"sendlog/internal/migrations"
	"sendlog/internal/models"
	"sendlog/internal/security"

	_ "github.com/mattn/go-sqlite3"
)

// Database is the transactional store backing the message send log. All
// mutations run through SQLite's serialized writer, which gives the total
// ordering per dedup key that the deletion check depends on.
type Database struct {
	db        *sql.DB
	encryptor *encryptor
}

func New(dbPath string) (*Database, error) {
	if len(dbPath) == 0 || dbPath[0] == '\x00' {
		return nil, fmt.Errorf("invalid database path")
	}

	// Validate database path to prevent directory traversal
	if err := security.ValidateFilePath(dbPath); err != nil {
		return nil, fmt.Errorf("invalid database path: %w", err)
	}

	file, err := os.OpenFile(dbPath, os.O_RDWR|os.O_CREATE, 0600)
	if err != nil {
		return nil, fmt.Errorf("failed to create database file: %w", err)
	}
	if err := file.Close(); err != nil {
		return nil, fmt.Errorf("failed to close database file: %w", err)
	}

	// Foreign keys must be on: cascade deletion of pending deliveries and
	// message references, plus the FK failure that signals the ack/send race,
	// both rely on it.
	db, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := db.Ping(); err != nil {
		if closeErr := db.Close(); closeErr != nil {
			return nil, fmt.Errorf("failed to ping database: %w (close error: %v)", err, closeErr)
		}
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	schema, err := migrations.GetInitialSchema()
	if err != nil {
		if closeErr := db.Close(); closeErr != nil {
			return nil, fmt.Errorf("failed to read schema: %w (close error: %v)", err, closeErr)
		}
		return nil, fmt.Errorf("failed to read schema: %w", err)
	}

	if _, err := db.Exec(schema); err != nil {
		if closeErr := db.Close(); closeErr != nil {
			return nil, fmt.Errorf("failed to initialize schema: %w (close error: %v)", err, closeErr)
		}
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	encryptor, err := NewEncryptor()
	if err != nil {
		if closeErr := db.Close(); closeErr != nil {
			return nil, fmt.Errorf("failed to initialize encryptor: %w (close error: %v)", err, closeErr)
		}
		return nil, fmt.Errorf("failed to initialize encryptor: %w", err)
	}

	return &Database{db: db, encryptor: encryptor}, nil
}

func (d *Database) Close() error {
	return d.db.Close()
}

// InsertPayload stores a payload together with its message references in a
// single transaction. Either everything lands or nothing does; a payload must
// never exist without the references that allow interaction-deletion cleanup.
func (d *Database) InsertPayload(ctx context.Context, payload *models.Payload, relatedMessageIDs []string) (int64, error) {
	encryptedPlaintext, err := d.encryptor.Encrypt(payload.Plaintext)
	if err != nil {
		return 0, fmt.Errorf("failed to encrypt plaintext: %w", err)
	}

	var payloadID int64
	err = retryableDBOperation(ctx, func() error {
		tx, err := d.db.BeginTx(ctx, nil)
		if err != nil {
			return fmt.Errorf("failed to begin transaction: %w", err)
		}
		defer func() { _ = tx.Rollback() }()

		result, err := tx.ExecContext(ctx, InsertPayloadQuery,
			encryptedPlaintext,
			payload.ContentHint,
			payload.SentTimestamp,
			payload.ThreadID,
			payload.SendComplete,
		)
		if err != nil {
			return fmt.Errorf("failed to insert payload: %w", err)
		}

		id, err := result.LastInsertId()
		if err != nil {
			return fmt.Errorf("failed to read inserted payload id: %w", err)
		}

		for _, messageID := range relatedMessageIDs {
			if _, err := tx.ExecContext(ctx, InsertMessageReferenceQuery, id, messageID); err != nil {
				return fmt.Errorf("failed to insert message reference: %w", err)
			}
		}

		if err := tx.Commit(); err != nil {
			return fmt.Errorf("failed to commit payload insert: %w", err)
		}

		payloadID = id
		return nil
	}, "insert payload")
	if err != nil {
		return 0, err
	}

	return payloadID, nil
}

// PayloadsByDedupKey returns every payload matching the dedup key. The
// caller enforces the at-most-one invariant.
func (d *Database) PayloadsByDedupKey(ctx context.Context, threadID string, sentTimestamp int64) ([]models.Payload, error) {
	rows, err := d.db.QueryContext(ctx, SelectPayloadsByDedupKeyQuery, threadID, sentTimestamp)
	if err != nil {
		return nil, fmt.Errorf("failed to query payloads by dedup key: %w", err)
	}
	defer func() { _ = rows.Close() }()

	return d.scanPayloads(rows)
}

// PayloadsForRecipient joins payloads with pending deliveries for the resend
// path.
func (d *Database) PayloadsForRecipient(ctx context.Context, sentTimestamp int64, recipientID string, deviceID uint32) ([]models.Payload, error) {
	rows, err := d.db.QueryContext(ctx, SelectPayloadsForRecipientQuery, sentTimestamp, recipientID, deviceID)
	if err != nil {
		return nil, fmt.Errorf("failed to query payloads for recipient: %w", err)
	}
	defer func() { _ = rows.Close() }()

	return d.scanPayloads(rows)
}

func (d *Database) scanPayloads(rows *sql.Rows) ([]models.Payload, error) {
	var payloads []models.Payload
	for rows.Next() {
		var p models.Payload
		var encryptedPlaintext []byte
		if err := rows.Scan(&p.ID, &encryptedPlaintext, &p.ContentHint, &p.SentTimestamp, &p.ThreadID, &p.SendComplete); err != nil {
			return nil, fmt.Errorf("failed to scan payload: %w", err)
		}

		plaintext, err := d.encryptor.Decrypt(encryptedPlaintext)
		if err != nil {
			return nil, fmt.Errorf("failed to decrypt plaintext: %w", err)
		}
		p.Plaintext = plaintext

		payloads = append(payloads, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate payloads: %w", err)
	}
	return payloads, nil
}

func (d *Database) SetSendComplete(ctx context.Context, payloadID int64, complete bool) error {
	return retryableDBOperation(ctx, func() error {
		_, err := d.db.ExecContext(ctx, UpdateSendCompleteQuery, complete, payloadID)
		if err != nil {
			return fmt.Errorf("failed to update send_complete: %w", err)
		}
		return nil
	}, "set send complete")
}

func (d *Database) DeletePayload(ctx context.Context, payloadID int64) error {
	return retryableDBOperation(ctx, func() error {
		_, err := d.db.ExecContext(ctx, DeletePayloadQuery, payloadID)
		if err != nil {
			return fmt.Errorf("failed to delete payload: %w", err)
		}
		return nil
	}, "delete payload")
}

// HasPendingDeliveries reports whether any recipient device still has an
// outstanding delivery for the payload.
func (d *Database) HasPendingDeliveries(ctx context.Context, payloadID int64) (bool, error) {
	var exists bool
	err := d.db.QueryRowContext(ctx, SelectPendingDeliveryExistsQuery, payloadID).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("failed to check pending deliveries: %w", err)
	}
	return exists, nil
}

// InsertPendingDelivery registers an outstanding delivery. A FOREIGN KEY
// constraint failure is returned unwrapped by the retry layer so the caller
// can classify the ack/send race.
func (d *Database) InsertPendingDelivery(ctx context.Context, payloadID int64, recipientID string, deviceID uint32) error {
	return retryableDBOperation(ctx, func() error {
		_, err := d.db.ExecContext(ctx, InsertPendingDeliveryQuery, payloadID, recipientID, deviceID)
		return err
	}, "insert pending delivery")
}

func (d *Database) DeletePendingDeliveries(ctx context.Context, payloadID int64, recipientID string, deviceID uint32) error {
	return retryableDBOperation(ctx, func() error {
		_, err := d.db.ExecContext(ctx, DeletePendingDeliveriesQuery, payloadID, recipientID, deviceID)
		if err != nil {
			return fmt.Errorf("failed to delete pending deliveries: %w", err)
		}
		return nil
	}, "delete pending deliveries")
}

func (d *Database) PendingDeviceIDs(ctx context.Context, payloadID int64, recipientID string) ([]uint32, error) {
	rows, err := d.db.QueryContext(ctx, SelectPendingDeviceIDsQuery, payloadID, recipientID)
	if err != nil {
		return nil, fmt.Errorf("failed to query pending device ids: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var deviceIDs []uint32
	for rows.Next() {
		var deviceID uint32
		if err := rows.Scan(&deviceID); err != nil {
			return nil, fmt.Errorf("failed to scan device id: %w", err)
		}
		deviceIDs = append(deviceIDs, deviceID)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate device ids: %w", err)
	}
	return deviceIDs, nil
}

// MoveThreadPayloads rewrites thread ownership when two conversations merge.
// Pending deliveries and message references key on payload id and are
// untouched.
func (d *Database) MoveThreadPayloads(ctx context.Context, fromThreadID, intoThreadID string) (int64, error) {
	var moved int64
	err := retryableDBOperation(ctx, func() error {
		result, err := d.db.ExecContext(ctx, UpdateThreadIDQuery, intoThreadID, fromThreadID)
		if err != nil {
			return fmt.Errorf("failed to move thread payloads: %w", err)
		}
		moved, _ = result.RowsAffected()
		return nil
	}, "move thread payloads")
	return moved, err
}

// DeletePayloadsForMessage removes every payload referenced by the given
// application message. Cascades clean up pending deliveries and references.
func (d *Database) DeletePayloadsForMessage(ctx context.Context, messageID string) (int64, error) {
	var deleted int64
	err := retryableDBOperation(ctx, func() error {
		tx, err := d.db.BeginTx(ctx, nil)
		if err != nil {
			return fmt.Errorf("failed to begin transaction: %w", err)
		}
		defer func() { _ = tx.Rollback() }()

		rows, err := tx.QueryContext(ctx, SelectPayloadIDsForMessageQuery, messageID)
		if err != nil {
			return fmt.Errorf("failed to query payload ids for message: %w", err)
		}

		var payloadIDs []int64
		for rows.Next() {
			var id int64
			if err := rows.Scan(&id); err != nil {
				_ = rows.Close()
				return fmt.Errorf("failed to scan payload id: %w", err)
			}
			payloadIDs = append(payloadIDs, id)
		}
		if err := rows.Err(); err != nil {
			_ = rows.Close()
			return fmt.Errorf("failed to iterate payload ids: %w", err)
		}
		if err := rows.Close(); err != nil {
			return fmt.Errorf("failed to close rows: %w", err)
		}

		for _, id := range payloadIDs {
			if _, err := tx.ExecContext(ctx, DeletePayloadQuery, id); err != nil {
				return fmt.Errorf("failed to delete payload %d: %w", id, err)
			}
		}

		if err := tx.Commit(); err != nil {
			return fmt.Errorf("failed to commit message deletion: %w", err)
		}

		deleted = int64(len(payloadIDs))
		return nil
	}, "delete payloads for message")
	return deleted, err
}

// DeleteExpiredBatch deletes up to limit payloads older than cutoff in one
// transaction and reports how many went. The sweep calls this repeatedly so
// no single transaction ever spans the whole backlog.
func (d *Database) DeleteExpiredBatch(ctx context.Context, cutoffTimestamp int64, limit int) (int, error) {
	var deleted int
	err := retryableDBOperation(ctx, func() error {
		tx, err := d.db.BeginTx(ctx, nil)
		if err != nil {
			return fmt.Errorf("failed to begin transaction: %w", err)
		}
		defer func() { _ = tx.Rollback() }()

		rows, err := tx.QueryContext(ctx, SelectExpiredPayloadIDsQuery, cutoffTimestamp, limit)
		if err != nil {
			return fmt.Errorf("failed to query expired payload ids: %w", err)
		}

		var payloadIDs []int64
		for rows.Next() {
			var id int64
			if err := rows.Scan(&id); err != nil {
				_ = rows.Close()
				return fmt.Errorf("failed to scan payload id: %w", err)
			}
			payloadIDs = append(payloadIDs, id)
		}
		if err := rows.Err(); err != nil {
			_ = rows.Close()
			return fmt.Errorf("failed to iterate expired payload ids: %w", err)
		}
		if err := rows.Close(); err != nil {
			return fmt.Errorf("failed to close rows: %w", err)
		}

		if len(payloadIDs) > 0 {
			placeholders := strings.Repeat("?,", len(payloadIDs))
			placeholders = placeholders[:len(placeholders)-1]
			args := make([]interface{}, len(payloadIDs))
			for i, id := range payloadIDs {
				args[i] = id
			}
			query := fmt.Sprintf("DELETE FROM payloads WHERE payload_id IN (%s)", placeholders)
			if _, err := tx.ExecContext(ctx, query, args...); err != nil {
				return fmt.Errorf("failed to delete expired payloads: %w", err)
			}
		}

		if err := tx.Commit(); err != nil {
			return fmt.Errorf("failed to commit expiry batch: %w", err)
		}

		deleted = len(payloadIDs)
		return nil
	}, "delete expired batch")
	return deleted, err
}
