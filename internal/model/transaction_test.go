package model

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/Veraticus/fintrack/internal/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStoredTransaction_Parse(t *testing.T) {
	tests := []struct {
		name      string
		stored    StoredTransaction
		wantDate  time.Time
		wantCat   Category
		wantErr   bool
		wantNewID bool
	}{
		{
			name:     "complete record",
			stored:   StoredTransaction{ID: "abc", Amount: 450, Description: "Swiggy order", Date: "2024-03-05", Category: CategoryFood},
			wantDate: time.Date(2024, 3, 5, 0, 0, 0, 0, time.UTC),
			wantCat:  CategoryFood,
		},
		{
			name:      "record without id gets one",
			stored:    StoredTransaction{Amount: 100, Description: "uber", Date: "2024-01-01", Category: CategoryTransport},
			wantDate:  time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
			wantCat:   CategoryTransport,
			wantNewID: true,
		},
		{
			name:     "custom category falls back to other",
			stored:   StoredTransaction{ID: "x", Amount: 1, Description: "gift", Date: "2024-01-01", Category: "gifts"},
			wantDate: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
			wantCat:  CategoryOther,
		},
		{
			name:    "bad date",
			stored:  StoredTransaction{ID: "x", Amount: 1, Date: "05/03/2024"},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			txn, err := tt.stored.Parse()
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.True(t, tt.wantDate.Equal(txn.Date))
			assert.Equal(t, tt.wantCat, txn.Category)
			assert.Equal(t, tt.stored.Amount, txn.Amount)
			assert.Equal(t, tt.stored.Description, txn.Description)
			if tt.wantNewID {
				assert.NotEmpty(t, txn.ID)
			} else {
				assert.Equal(t, tt.stored.ID, txn.ID)
			}
		})
	}
}

func TestTransaction_StoredRoundTrip(t *testing.T) {
	txn := Transaction{
		ID:          NewID(),
		Amount:      1234,
		Description: "Netflix subscription",
		Date:        time.Date(2024, 2, 29, 0, 0, 0, 0, time.UTC),
		Category:    CategoryEntertainment,
	}

	stored := txn.Stored()
	assert.Equal(t, "2024-02-29", stored.Date)

	back, err := stored.Parse()
	require.NoError(t, err)
	assert.Equal(t, txn, back)
}

func TestParseCategory(t *testing.T) {
	c, err := ParseCategory("  Food ")
	require.NoError(t, err)
	assert.Equal(t, CategoryFood, c)

	_, err = ParseCategory("groceries")
	assert.ErrorIs(t, err, ErrUnknownCategory)
	assert.ErrorIs(t, err, common.ErrValidation)

	assert.Equal(t, "Entertainment", CategoryEntertainment.Title())
}

func TestUserAccount_Clone(t *testing.T) {
	login := time.Date(2024, 1, 1, 9, 0, 0, 0, time.UTC)
	acct := NewUserAccount("alice", "hash", login)
	acct.LastLogin = &login
	acct.Transactions = append(acct.Transactions, StoredTransaction{ID: "1", Amount: 10, Date: "2024-01-01"})

	cp := acct.Clone()
	cp.Transactions[0].Amount = 99
	*cp.LastLogin = login.Add(time.Hour)

	assert.Equal(t, int64(10), acct.Transactions[0].Amount)
	assert.True(t, acct.LastLogin.Equal(login))
}

func TestUserAccount_UnmarshalLegacyTimestamps(t *testing.T) {
	data := []byte(`{
		"username": "alice",
		"password_hash": "abc",
		"created_at": "2024-03-01T09:15:30.123456",
		"last_login": null,
		"transactions": [{"amount": 450, "description": "Swiggy", "date": "2024-03-01", "category": "food"}]
	}`)

	var acct UserAccount
	require.NoError(t, json.Unmarshal(data, &acct))
	assert.Equal(t, "alice", acct.Username)
	assert.Equal(t, 2024, acct.CreatedAt.Year())
	assert.Equal(t, 123456000, acct.CreatedAt.Nanosecond())
	assert.Nil(t, acct.LastLogin)
	assert.Len(t, acct.Transactions, 1)
	assert.NotNil(t, acct.TransactionHistory)

	out, err := json.Marshal(&acct)
	require.NoError(t, err)
	var again UserAccount
	require.NoError(t, json.Unmarshal(out, &again))
	assert.True(t, acct.CreatedAt.Equal(again.CreatedAt))

	assert.Error(t, json.Unmarshal([]byte(`{"created_at": "yesterday"}`), &again))
}
