package helpers

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// DeviceTokenManager signs and checks the device cookie. The token only
// names a device; the session it holds lives server side.
type DeviceTokenManager struct {
	Secret []byte
	TTL    time.Duration
	now    func() time.Time
}

func NewDeviceTokenManager(secret string, ttl time.Duration) *DeviceTokenManager {
	return &DeviceTokenManager{Secret: []byte(secret), TTL: ttl, now: time.Now}
}

type DeviceClaims struct {
	DeviceID string `json:"did"`
	jwt.RegisteredClaims
}

// Issue mints a token for a fresh device id.
func (m *DeviceTokenManager) Issue() (token, deviceID string, exp time.Time, err error) {
	deviceID = uuid.NewString()
	token, exp, err = m.Sign(deviceID)
	return token, deviceID, exp, err
}

// Sign extends the life of an existing device id.
func (m *DeviceTokenManager) Sign(deviceID string) (string, time.Time, error) {
	now := m.now()
	exp := now.Add(m.TTL)
	claims := &DeviceClaims{
		DeviceID: deviceID,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(exp),
			IssuedAt:  jwt.NewNumericDate(now),
		},
	}
	t := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	s, err := t.SignedString(m.Secret)
	return s, exp, err
}

func (m *DeviceTokenManager) Parse(tokenStr string) (*DeviceClaims, error) {
	claims := &DeviceClaims{}
	tkn, err := jwt.ParseWithClaims(tokenStr, claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("unexpected signing method")
		}
		return m.Secret, nil
	}, jwt.WithTimeFunc(m.now))
	if err != nil {
		return nil, err
	}
	if !tkn.Valid || claims.DeviceID == "" {
		return nil, errors.New("invalid token")
	}
	return claims, nil
}
