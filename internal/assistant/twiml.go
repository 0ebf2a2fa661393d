package assistant

import "encoding/xml"

// TwiML documents returned to Twilio webhooks.

type twimlMessage struct {
	XMLName xml.Name `xml:"Response"`
	Message string   `xml:"Message"`
}

type twimlStream struct {
	URL  string `xml:"url,attr"`
	Name string `xml:"name,attr"`
}

type twimlConnect struct {
	XMLName xml.Name    `xml:"Response"`
	Stream  twimlStream `xml:"Connect>Stream"`
}

type twimlSay struct {
	XMLName xml.Name `xml:"Response"`
	Say     string   `xml:"Say"`
}

// MessageTwiML replies to an inbound WhatsApp message with body.
func MessageTwiML(body string) ([]byte, error) {
	return marshalTwiML(twimlMessage{Message: body})
}

// ConnectStreamTwiML bridges the call audio to a media stream.
func ConnectStreamTwiML(url, name string) ([]byte, error) {
	return marshalTwiML(twimlConnect{Stream: twimlStream{URL: url, Name: name}})
}

func SayTwiML(text string) ([]byte, error) {
	return marshalTwiML(twimlSay{Say: text})
}

func marshalTwiML(v interface{}) ([]byte, error) {
	body, err := xml.Marshal(v)
	if err != nil {
		return nil, err
	}
	return append([]byte(xml.Header), body...), nil
}
