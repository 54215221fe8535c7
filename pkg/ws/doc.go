// Package ws предоставляет WebSocket клиент с интерфейсом на колбэках:
//   - Соединения идентифицируются меткой (для логов) и непрозрачным handle
//   - События open / close / fail / message транслируются в колбэки вызывающего
//   - Все колбэки выполняются последовательно на одной горутине event loop
//   - TLS конфигурация создаётся на каждое wss соединение через TLSInitHandler
//
// Фрейминг, HTTP upgrade и TLS handshake выполняет gorilla/websocket и crypto/tls.
// Переподключений и очередей сообщений нет.
//
// # Клиент
//
//	client := ws.NewClient(ws.DefaultClientConfig())
//	defer client.Close()
//
//	conn, err := client.Connect("wss://example.com/ws", "events",
//	    func(c ws.Connection) {
//	        client.Send(c, `{"type":"hello"}`)
//	    },
//	    func(c ws.Connection, end ws.EndType) {
//	        log.Printf("%s ended: %s", c.Label, end)
//	    },
//	    func(c ws.Connection, msg string) {
//	        log.Printf("%s: %s", c.Label, msg)
//	    },
//	)
//
// # Порядок событий
//
// Для каждого соединения: не более одного OnOpen, затем ноль или больше
// OnMessage, затем ровно один OnEnded. Соединение, которое не открылось,
// завершается с Failed без OnOpen; открытое соединение завершается с Closed.
//
// # Логи
//
// Access и error каналы включаются битовыми масками (AccessChannel,
// ErrorChannel). По умолчанию включено всё, кроме AccessMessagePayload.
//
//	client.SetAccessChannels(ws.AccessMessagePayload)
//	client.ClearErrorChannels(ws.ErrorDevel)
//
// # TLS
//
//	cfg := ws.DefaultClientConfig()
//	cfg.TLSInit = (&ws.TLSConfig{
//	    RootCAs:        rootPool,
//	    CertificatePEM: certPEM, // опционально, для mTLS
//	    PrivateKeyPEM:  keyPEM,
//	}).Handler()
package ws
