package load

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lakeshare/lakeshare/sharing"
)

func TestCreateViewStatement(t *testing.T) {
	tests := []struct {
		name    string
		view    string
		files   []fileSource
		want    string
		wantErr string
	}{
		{
			name: "plain_files_share_one_list",
			view: "events",
			files: []fileSource{
				{URL: "https://bucket/f1", Ref: sharing.FileReference{FileID: "f1"}},
				{URL: "https://bucket/f2", Ref: sharing.FileReference{FileID: "f2"}},
			},
			want: `CREATE OR REPLACE VIEW "events" AS SELECT * FROM read_parquet(['https://bucket/f1', 'https://bucket/f2'])`,
		},
		{
			name: "partition_value_becomes_constant_column",
			view: "events",
			files: []fileSource{
				{URL: "https://bucket/f1", Ref: sharing.FileReference{
					FileID:          "f1",
					PartitionValues: map[string]string{"date": "2024-01-01"},
				}},
			},
			want: `CREATE OR REPLACE VIEW "events" AS
SELECT *, '2024-01-01' AS "date" FROM read_parquet(['https://bucket/f1'])`,
		},
		{
			name: "distinct_partitions_union_by_name",
			view: "events",
			files: []fileSource{
				{URL: "https://bucket/f1", Ref: sharing.FileReference{
					FileID:          "f1",
					PartitionValues: map[string]string{"date": "2024-01-01"},
				}},
				{URL: "https://bucket/f2", Ref: sharing.FileReference{
					FileID:          "f2",
					PartitionValues: map[string]string{"date": "2024-01-02"},
				}},
			},
			want: `CREATE OR REPLACE VIEW "events" AS
SELECT *, '2024-01-01' AS "date" FROM read_parquet(['https://bucket/f1'])
UNION ALL BY NAME
SELECT *, '2024-01-02' AS "date" FROM read_parquet(['https://bucket/f2'])`,
		},
		{
			name: "partition_columns_sorted_by_name",
			view: "events",
			files: []fileSource{
				{URL: "https://bucket/f1", Ref: sharing.FileReference{
					FileID:          "f1",
					PartitionValues: map[string]string{"region": "eu", "date": "2024-01-01"},
				}},
			},
			want: `CREATE OR REPLACE VIEW "events" AS
SELECT *, '2024-01-01' AS "date", 'eu' AS "region" FROM read_parquet(['https://bucket/f1'])`,
		},
		{
			name: "change_feed_file_adds_commit_columns",
			view: "events_changes",
			files: []fileSource{
				{URL: "https://bucket/a1", Ref: sharing.FileReference{
					FileID:          "a1",
					PartitionValues: map[string]string{"date": "2024-01-01"},
					CommitVersion:   2,
					CommitTimestamp: 1700000000000,
					ChangeType:      sharing.ChangeTypeInsert,
				}},
			},
			want: `CREATE OR REPLACE VIEW "events_changes" AS
SELECT *, '2024-01-01' AS "date", 2 AS "_commit_version", epoch_ms(1700000000000) AS "_commit_timestamp", 'insert' AS "_change_type" FROM read_parquet(['https://bucket/a1'])`,
		},
		{
			name: "change_data_file_has_no_change_type_constant",
			view: "events_changes",
			files: []fileSource{
				{URL: "https://bucket/c1", Ref: sharing.FileReference{
					FileID:          "c1",
					CommitVersion:   2,
					CommitTimestamp: 1700000000000,
				}},
			},
			want: `CREATE OR REPLACE VIEW "events_changes" AS
SELECT *, 2 AS "_commit_version", epoch_ms(1700000000000) AS "_commit_timestamp" FROM read_parquet(['https://bucket/c1'])`,
		},
		{
			name: "mixed_files_keep_per_file_branches",
			view: "events",
			files: []fileSource{
				{URL: "https://bucket/f1", Ref: sharing.FileReference{FileID: "f1"}},
				{URL: "https://bucket/f2", Ref: sharing.FileReference{
					FileID:          "f2",
					PartitionValues: map[string]string{"date": "2024-01-02"},
				}},
			},
			want: `CREATE OR REPLACE VIEW "events" AS
SELECT * FROM read_parquet(['https://bucket/f1'])
UNION ALL BY NAME
SELECT *, '2024-01-02' AS "date" FROM read_parquet(['https://bucket/f2'])`,
		},
		{
			name: "single_quotes_in_values_are_doubled",
			view: "events",
			files: []fileSource{
				{URL: "https://bucket/f1?sig=a'b", Ref: sharing.FileReference{
					FileID:          "f1",
					PartitionValues: map[string]string{"owner": "O'Brien"},
				}},
			},
			want: `CREATE OR REPLACE VIEW "events" AS
SELECT *, 'O''Brien' AS "owner" FROM read_parquet(['https://bucket/f1?sig=a''b'])`,
		},
		{
			name:    "no_files",
			view:    "events",
			wantErr: "at least one file is required",
		},
		{
			name:    "empty_view_name",
			view:    "",
			files:   []fileSource{{URL: "https://bucket/f1"}},
			wantErr: "view name is required",
		},
		{
			name:    "invalid_view_name",
			view:    "my-view",
			files:   []fileSource{{URL: "https://bucket/f1"}},
			wantErr: "view name must match",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := createViewStatement(tt.view, tt.files)
			if tt.wantErr != "" {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestQuoting(t *testing.T) {
	assert.Equal(t, `"events"`, quoteIdentifier("events"))
	assert.Equal(t, `"my""view"`, quoteIdentifier(`my"view`))
	assert.Equal(t, `'plain'`, quoteLiteral("plain"))
	assert.Equal(t, `'it''s'`, quoteLiteral("it's"))
}
