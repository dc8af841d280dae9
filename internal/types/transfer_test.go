package types

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestBatch_RequestIDs(t *testing.T) {
	b := Batch{Transfers: []Transfer{
		{RequestID: "a", Amount: "1"},
		{RequestID: "b", Amount: "0.5"},
		{RequestID: "a", Amount: "0.25"},
	}}

	require.Equal(t, []string{"a", "b"}, b.RequestIDs())

	total, err := b.GetTotalNano()
	require.NoError(t, err)
	require.Equal(t, "1750000000", total.String())
}

func TestBatch_InvalidAmount(t *testing.T) {
	b := Batch{Transfers: []Transfer{{Amount: "ten"}}}

	_, err := b.GetTotalNano()
	require.Error(t, err)
}

func TestMessageStatus_IsFinal(t *testing.T) {
	require.False(t, StatusPending.IsFinal())
	require.False(t, StatusSubmitted.IsFinal())
	require.False(t, StatusConfirmed.IsFinal())
	require.True(t, StatusSuccess.IsFinal())
	require.True(t, StatusExpired.IsFinal())
}

func TestSendRequest_Validate(t *testing.T) {
	valid := func() SendRequest {
		return SendRequest{RequestID: "r", Transfers: []Transfer{{
			Wallet: "0QAFyfwn13L8oi30vdWBV41zFaHzCa6mJpVEjCeaDUAqmGcO",
			Amount: "0.01",
		}}}
	}

	req := valid()
	require.NoError(t, req.Validate())

	req = valid()
	req.RequestID = ""
	require.Error(t, req.Validate())

	req = valid()
	req.Transfers = nil
	require.Error(t, req.Validate())

	req = valid()
	req.Transfers[0].Amount = "0"
	require.Error(t, req.Validate())

	req = valid()
	req.Transfers[0].Amount = "abc"
	require.Error(t, req.Validate())

	req = valid()
	req.Transfers[0].Wallet = "nope"
	require.Error(t, req.Validate())
}

func TestSendRequest_ValidateJetton(t *testing.T) {
	jetton := func() SendRequest {
		return SendRequest{RequestID: "r", Transfers: []Transfer{{
			Wallet: "0QAFyfwn13L8oi30vdWBV41zFaHzCa6mJpVEjCeaDUAqmGcO",
			Amount: "0.05",
			Jetton: &JettonTransfer{
				JettonWallet:  "0QB6ZOQd5htYtmB1qxWkd3c1iBoowxnMR5Rt61EscxJnIiou",
				Amount:        "1000000",
				ForwardAmount: "0.01",
			},
		}}}
	}

	req := jetton()
	require.NoError(t, req.Validate())

	units, err := req.Transfers[0].Jetton.Units()
	require.NoError(t, err)
	require.Equal(t, "1000000", units.String())

	forward, err := req.Transfers[0].Jetton.ForwardNano()
	require.NoError(t, err)
	require.Equal(t, "10000000", forward.String())

	req = jetton()
	req.Transfers[0].Jetton.ForwardAmount = ""
	require.NoError(t, req.Validate())

	for _, broken := range []func(*JettonTransfer){
		func(j *JettonTransfer) { j.JettonWallet = "nope" },
		func(j *JettonTransfer) { j.Amount = "1.5" },
		func(j *JettonTransfer) { j.Amount = "0" },
		func(j *JettonTransfer) { j.ForwardAmount = "x" },
	} {
		req = jetton()
		broken(req.Transfers[0].Jetton)
		require.Error(t, req.Validate())
	}
}
