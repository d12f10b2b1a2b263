package models

// UpstoxLTPResponse represents the response from the Upstox market-quote/ltp API
type UpstoxLTPResponse struct {
	Status string                       `json:"status"`
	Data   map[string]UpstoxLTPInstrument `json:"data"`
}

// UpstoxLTPInstrument represents the per-instrument payload of an LTP response.
// The data map is keyed by "EXCHANGE_SEGMENT:TRADING_SYMBOL"; the instrument
// key requested by the caller is echoed back in instrument_token.
type UpstoxLTPInstrument struct {
	LastPrice       float64 `json:"last_price"`
	InstrumentToken string  `json:"instrument_token"`
}

// UpstoxOptionChainResponse represents the response from the Upstox option/chain API
type UpstoxOptionChainResponse struct {
	Status string             `json:"status"`
	Data   []UpstoxOptionData `json:"data"`
}

// UpstoxOptionData represents one strike of an option chain response
type UpstoxOptionData struct {
	Expiry              string           `json:"expiry"`
	PCR                 float64          `json:"pcr"`
	StrikePrice         float64          `json:"strike_price"`
	UnderlyingKey       string           `json:"underlying_key"`
	UnderlyingSpotPrice float64          `json:"underlying_spot_price"`
	CallOptions         UpstoxOptionSide `json:"call_options"`
	PutOptions          UpstoxOptionSide `json:"put_options"`
}

// UpstoxOptionSide represents the call or put side of a strike
type UpstoxOptionSide struct {
	InstrumentKey string             `json:"instrument_key"`
	MarketData    UpstoxMarketData   `json:"market_data"`
	OptionGreeks  UpstoxOptionGreeks `json:"option_greeks"`
}

// UpstoxMarketData represents market data fields of an option contract
type UpstoxMarketData struct {
	LTP        float64 `json:"ltp"`
	ClosePrice float64 `json:"close_price"`
	Volume     float64 `json:"volume"`
	OI         float64 `json:"oi"`
	BidPrice   float64 `json:"bid_price"`
	BidQty     float64 `json:"bid_qty"`
	AskPrice   float64 `json:"ask_price"`
	AskQty     float64 `json:"ask_qty"`
	PrevOI     float64 `json:"prev_oi"`
}

// UpstoxOptionGreeks represents option greeks of a contract
type UpstoxOptionGreeks struct {
	Vega  float64 `json:"vega"`
	Theta float64 `json:"theta"`
	Gamma float64 `json:"gamma"`
	Delta float64 `json:"delta"`
	IV    float64 `json:"iv"`
}
