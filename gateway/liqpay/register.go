package liqpay

import "github.com/storecore/paygate/gateway"

func init() {
	gateway.Register(gatewayName, NewGateway)
}
