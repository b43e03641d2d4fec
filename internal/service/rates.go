package service

import (
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/beevik/etree"
	"github.com/patrickmn/go-cache"
	"github.com/sirupsen/logrus"
	"golang.org/x/net/html/charset"

	"calcus-analytics/internal/model"
)

const ratesCacheKey = "cbr_rates"

// fallbackRates возвращает примерные курсы на случай недоступности ЦБ РФ
func fallbackRates() model.RateTable {
	return model.RateTable{
		model.CurrencyRUB: 1.0,
		model.CurrencyUSD: 95.0,
		model.CurrencyEUR: 105.0,
	}
}

// CBRClient получает дневные курсы валют от ЦБ РФ
type CBRClient struct {
	url        string
	httpClient *http.Client
	cache      *cache.Cache
	cacheTTL   time.Duration
	logger     *logrus.Logger
}

// NewCBRClient создаёт новый экземпляр клиента для взаимодействия с веб-сервисом ЦБ РФ
func NewCBRClient(url string, cacheTTL time.Duration, logger *logrus.Logger) *CBRClient {
	return &CBRClient{
		url: url,
		httpClient: &http.Client{
			Timeout: 10 * time.Second,
		},
		cache:    cache.New(cacheTTL, 2*cacheTTL),
		cacheTTL: cacheTTL,
		logger:   logger,
	}
}

// FetchRates возвращает таблицу курсов к рублю. Метод никогда не завершается
// ошибкой: при любом сбое (сеть, разбор, отсутствие полей) возвращаются
// фиксированные примерные курсы, а предупреждение пишется в лог.
// Результат кэшируется в одном общем слоте, в том числе примерные курсы:
// пока сервис недоступен, запрос не повторяется до истечения кэша.
func (c *CBRClient) FetchRates() model.RateTable {
	if cached, ok := c.cache.Get(ratesCacheKey); ok {
		return cached.(model.RateTable)
	}

	rates, err := c.requestRates()
	if err != nil {
		c.logger.WithError(err).Warn("Не удалось получить курсы ЦБ РФ, используются примерные курсы")
		fallback := fallbackRates()
		c.cache.Set(ratesCacheKey, fallback, c.cacheTTL)
		return fallback
	}

	c.cache.Set(ratesCacheKey, rates, c.cacheTTL)
	c.logger.WithFields(logrus.Fields{
		"usd": rates[model.CurrencyUSD],
		"eur": rates[model.CurrencyEUR],
	}).Info("Курсы ЦБ РФ успешно получены")

	return rates
}

// requestRates запрашивает и разбирает XML-документ сервиса XML_daily
func (c *CBRClient) requestRates() (model.RateTable, error) {
	resp, err := c.httpClient.Get(c.url)
	if err != nil {
		return nil, fmt.Errorf("ошибка при выполнении HTTP-запроса: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("неожиданный статус ответа: %s", resp.Status)
	}

	rawBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("ошибка при чтении ответа: %w", err)
	}

	return parseRatesXML(rawBody)
}

// parseRatesXML извлекает курсы USD и EUR из ответа ЦБ РФ.
// Значение курса записано с десятичной запятой и относится к лоту
// из Nominal единиц, поэтому приводится к курсу за единицу валюты.
func parseRatesXML(rawBody []byte) (model.RateTable, error) {
	doc := etree.NewDocument()
	// Ответ ЦБ РФ приходит в кодировке windows-1251
	doc.ReadSettings.CharsetReader = charset.NewReaderLabel
	if err := doc.ReadFromBytes(rawBody); err != nil {
		return nil, fmt.Errorf("ошибка при разборе XML: %w", err)
	}

	rates := model.RateTable{model.CurrencyRUB: 1.0}

	for _, valute := range doc.FindElements("//Valute") {
		codeElement := valute.FindElement("./CharCode")
		if codeElement == nil {
			continue
		}
		code := codeElement.Text()
		if code != model.CurrencyUSD && code != model.CurrencyEUR {
			continue
		}

		valueElement := valute.FindElement("./Value")
		nominalElement := valute.FindElement("./Nominal")
		if valueElement == nil || nominalElement == nil {
			return nil, fmt.Errorf("элементы Value/Nominal отсутствуют для валюты %s", code)
		}

		value, err := strconv.ParseFloat(strings.Replace(valueElement.Text(), ",", ".", 1), 64)
		if err != nil {
			return nil, fmt.Errorf("ошибка при преобразовании курса %s: %w", code, err)
		}
		nominal, err := strconv.ParseFloat(nominalElement.Text(), 64)
		if err != nil || nominal == 0 {
			return nil, fmt.Errorf("неверный номинал для валюты %s", code)
		}

		rates[code] = value / nominal
	}

	if len(rates) < 3 {
		return nil, fmt.Errorf("в ответе ЦБ РФ найдены не все валюты: %d из 2", len(rates)-1)
	}

	return rates, nil
}
