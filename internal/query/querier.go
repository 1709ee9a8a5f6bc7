package query

import (
	"LightCount/internal/config"
	"LightCount/internal/model"
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/ClickHouse/clickhouse-go/v2"
)

// clickhouseStore implements model.StorageGateway for ClickHouse.
type clickhouseStore struct {
	conn clickhouse.Conn
}

// NewClickHouseStore connects to ClickHouse and returns a gateway over
// sample_tbl and node_tbl.
func NewClickHouseStore(cfg config.ClickHouseConfig) (model.StorageGateway, error) {
	conn, err := connect(cfg)
	if err != nil {
		return nil, &model.DataError{Op: "connect", Err: err}
	}
	return &clickhouseStore{conn: conn}, nil
}

func connect(cfg config.ClickHouseConfig) (clickhouse.Conn, error) {
	addr := fmt.Sprintf("%s:%d", cfg.Host, cfg.Port)

	conn, err := clickhouse.Open(&clickhouse.Options{
		Addr: []string{addr},
		Auth: clickhouse.Auth{
			Database: cfg.Database,
			Username: cfg.Username,
			Password: cfg.Password,
		},
		DialTimeout: cfg.Timeout(),
	})

	if err != nil {
		return nil, err
	}

	if err := conn.Ping(context.Background()); err != nil {
		return nil, fmt.Errorf("failed to ping clickhouse: %w", err)
	}

	return conn, nil
}

// NodeID looks up a node by name.
func (s *clickhouseStore) NodeID(ctx context.Context, name string) (uint32, error) {
	var id uint32
	row := s.conn.QueryRow(ctx, "SELECT node_id FROM node_tbl WHERE node_name = ? LIMIT 1", name)
	if err := row.Scan(&id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, model.ErrNotFound
		}
		return 0, &model.DataError{Op: "node lookup", Err: err}
	}
	return id, nil
}

// NodeName looks up a node by id.
func (s *clickhouseStore) NodeName(ctx context.Context, id uint32) (string, error) {
	var name string
	row := s.conn.QueryRow(ctx, "SELECT node_name FROM node_tbl WHERE node_id = ? LIMIT 1", id)
	if err := row.Scan(&name); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", model.ErrNotFound
		}
		return "", &model.DataError{Op: "node lookup", Err: err}
	}
	return name, nil
}

// SumByUnixtime sums one rate column per native timestamp.
func (s *clickhouseStore) SumByUnixtime(ctx context.Context, cond model.Condition, field model.Field, begin, end int64) ([]model.Point, error) {
	if !field.Valid() {
		return nil, fmt.Errorf("unsupported field: %s", field)
	}

	var queryBuilder strings.Builder
	queryBuilder.WriteString("SELECT unixtime, SUM(")
	queryBuilder.WriteString(string(field))
	queryBuilder.WriteString(") FROM sample_tbl")

	whereClauses := []string{"unixtime >= ?", "unixtime <= ?"}
	args := []interface{}{uint32(begin), uint32(end)}
	whereClauses, args = appendCondition(whereClauses, args, cond)

	queryBuilder.WriteString(" WHERE " + strings.Join(whereClauses, " AND "))
	queryBuilder.WriteString(" GROUP BY unixtime ORDER BY unixtime")

	rows, err := s.conn.Query(ctx, queryBuilder.String(), args...)
	if err != nil {
		return nil, &model.DataError{Op: "sum query", Err: err}
	}
	defer rows.Close()

	var points []model.Point
	for rows.Next() {
		var (
			unixtime uint32
			sum      uint64
		)
		if err := rows.Scan(&unixtime, &sum); err != nil {
			return nil, &model.DataError{Op: "sum query", Err: fmt.Errorf("failed to scan row: %w", err)}
		}
		points = append(points, model.Point{Unixtime: int64(unixtime), Value: sum})
	}
	if err := rows.Err(); err != nil {
		return nil, &model.DataError{Op: "sum query", Err: err}
	}
	return points, nil
}

// ExportRows returns the raw samples of one export chunk with node names
// resolved.
func (s *clickhouseStore) ExportRows(ctx context.Context, cond model.Condition, begin, end int64) ([]model.ExportRow, error) {
	whereClauses := []string{"unixtime >= ?", "unixtime < ?"}
	args := []interface{}{uint32(begin), uint32(end)}
	whereClauses, args = appendCondition(whereClauses, args, cond)

	// The filter refers to bare column names, so it is applied before the
	// join with node_tbl.
	var queryBuilder strings.Builder
	queryBuilder.WriteString(`
		SELECT s.unixtime, s.node_id, n.node_name, s.vlan_id, s.ip,
			s.in_pps, s.in_bps, s.out_pps, s.out_bps
		FROM (
			SELECT unixtime, node_id, vlan_id, ip, in_pps, in_bps, out_pps, out_bps
			FROM sample_tbl
	`)
	queryBuilder.WriteString(" WHERE " + strings.Join(whereClauses, " AND "))
	queryBuilder.WriteString(`
		) AS s
		LEFT JOIN node_tbl AS n ON s.node_id = n.node_id
		ORDER BY s.unixtime, s.ip, s.vlan_id, s.node_id
	`)

	rows, err := s.conn.Query(ctx, queryBuilder.String(), args...)
	if err != nil {
		return nil, &model.DataError{Op: "export query", Err: err}
	}
	defer rows.Close()

	var out []model.ExportRow
	for rows.Next() {
		var (
			unixtime, nodeID, ip uint32
			nodeName             string
			vlanID               uint16
			r                    model.ExportRow
		)
		if err := rows.Scan(&unixtime, &nodeID, &nodeName, &vlanID, &ip, &r.InPps, &r.InBps, &r.OutPps, &r.OutBps); err != nil {
			return nil, &model.DataError{Op: "export query", Err: fmt.Errorf("failed to scan row: %w", err)}
		}
		r.Unixtime = int64(unixtime)
		r.NodeName = nodeLabel(nodeName, nodeID)
		r.VlanID = vlanID
		r.IP = model.FormatIPv4(ip)
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, &model.DataError{Op: "export query", Err: err}
	}
	return out, nil
}

// Close closes the underlying connection.
func (s *clickhouseStore) Close() error {
	return s.conn.Close()
}

func appendCondition(whereClauses []string, args []interface{}, cond model.Condition) ([]string, []interface{}) {
	if cond == nil {
		return whereClauses, args
	}
	clause, condArgs := cond.Where()
	if clause == "" {
		return whereClauses, args
	}
	return append(whereClauses, clause), append(args, condArgs...)
}

// nodeLabel falls back to the numeric id for nodes missing from node_tbl.
func nodeLabel(name string, id uint32) string {
	if name == "" {
		return strconv.FormatUint(uint64(id), 10)
	}
	return name
}
