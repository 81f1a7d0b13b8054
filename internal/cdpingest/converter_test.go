package cdpingest

import (
	"testing"

	"github.com/mafredri/cdp/protocol/network"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tagscope/pkg/model"
)

func TestToRecordClassifiesAtCreation(t *testing.T) {
	post := `{"event":"view"}`
	ev := &network.RequestWillBeSentReply{
		RequestID: network.RequestID("r1"),
		Type:      network.ResourceType("XHR"),
		Request: network.Request{
			URL:      "https://www.google-analytics.com/g/collect?v=2",
			Method:   "POST",
			Headers:  network.Headers(`{"Content-Type":"application/json","Accept":"*/*"}`),
			PostData: &post,
		},
	}

	rec := toRecord(ev, "shop.example.com")
	assert.Equal(t, model.TransportXHR, rec.Transport)
	assert.Equal(t, model.StatePending, rec.State)
	assert.True(t, rec.External)
	assert.True(t, rec.TagRelated)
	assert.Equal(t, "Google", rec.Vendor)
	assert.Equal(t, model.BodyJSON, rec.BodyKind)

	// 头按名称排序，保证输出稳定
	require.Len(t, rec.RequestHeaders, 2)
	assert.Equal(t, "Accept", rec.RequestHeaders[0].Name)
	assert.Equal(t, "Content-Type", rec.RequestHeaders[1].Name)
}

func TestTransportOf(t *testing.T) {
	assert.Equal(t, model.TransportXHR, transportOf(network.ResourceType("XHR")))
	assert.Equal(t, model.TransportBeacon, transportOf(network.ResourceType("Ping")))
	assert.Equal(t, model.TransportFetch, transportOf(network.ResourceType("Script")))
	assert.Equal(t, model.TransportFetch, transportOf(network.ResourceType("")))
}

func TestSniffBodyKind(t *testing.T) {
	assert.Equal(t, model.BodyNone, sniffBodyKind(""))
	assert.Equal(t, model.BodyJSON, sniffBodyKind(`{"a":1}`))
	assert.Equal(t, model.BodyForm, sniffBodyKind("a=1&b=2"))
	assert.Equal(t, model.BodyText, sniffBodyKind("plain words here"))
}
